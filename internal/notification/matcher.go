package notification

import (
	"context"
	"slices"

	"backend-localpulse/internal/geo"
	"backend-localpulse/internal/post"

	"github.com/sirupsen/logrus"
)

// LocateFunc resolves a user's reference location: last known location, else
// their most recent post's location. nil with no error means unknown.
type LocateFunc func(ctx context.Context, userID string) (*geo.Coordinate, error)

// MatchUsers decides which subscribed users should hear about a new post.
// A preference matches when its category set contains the post's category and
// the user's reference location is within the preferred radius; an unbounded
// radius matches regardless of distance. Users whose location cannot be
// resolved are skipped, not failed; the pass always completes.
func MatchUsers(ctx context.Context, p post.Post, prefs []Preference, locate LocateFunc) []Match {
	var matches []Match
	for _, pref := range prefs {
		if !slices.Contains(pref.Categories, p.Category) {
			continue
		}

		loc, err := locate(ctx, pref.UserID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", pref.UserID).Warn("locate user failed")
			continue
		}
		if loc == nil || !loc.Valid() {
			continue
		}

		radius := pref.Radius()
		if _, bounded := radius.Km(); !bounded {
			matches = append(matches, Match{
				UserID:     pref.UserID,
				Post:       p,
				DistanceKm: distanceIfLocated(*loc, p),
				PushToken:  pref.PushToken,
			})
			continue
		}

		if p.Location == nil || !p.Location.Valid() {
			// No post location, so no distance to compare against a bound.
			continue
		}
		d := geo.HaversineKm(*loc, *p.Location)
		if radius.Contains(d) {
			matches = append(matches, Match{
				UserID:     pref.UserID,
				Post:       p,
				DistanceKm: d,
				PushToken:  pref.PushToken,
			})
		}
	}
	return matches
}

func distanceIfLocated(from geo.Coordinate, p post.Post) float64 {
	if p.Location == nil || !p.Location.Valid() {
		return 0
	}
	return geo.HaversineKm(from, *p.Location)
}
