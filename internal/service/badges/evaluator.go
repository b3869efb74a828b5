package badges

import (
	"github.com/maplenou/maplenou-api/internal/models"
)

// Outcome describes what one acceptance changed on a user.
type Outcome struct {
	PreviousStreak  int  `json:"previous_streak"`
	Streak          int  `json:"streak"`
	PreviousLevel   int  `json:"previous_level"`
	Level           int  `json:"level"`
	Promoted        bool `json:"promoted"`
	EligibleLoterie bool `json:"eligible_loterie"`
	Changed         bool `json:"changed"`
}

// TierFor returns the highest level whose threshold is at most streak, or 0.
// defs may be in any order.
func TierFor(streak int, defs []models.BadgeDefinition) int {
	tier := 0
	for _, d := range defs {
		if d.JoursRequis <= streak && d.Niveau > tier {
			tier = d.Niveau
		}
	}
	return tier
}

// Apply records an accepted order of today on user. today and yesterday are
// day keys. The streak grows when the previous accepted order was yesterday
// and restarts at 1 otherwise. The badge level only ever rises here.
// Applying twice on the same day, or for a day before the last purchase,
// changes nothing.
func Apply(user *models.User, today, yesterday string, defs []models.BadgeDefinition, lotteryTier int) Outcome {
	out := Outcome{
		PreviousStreak:  user.StreakConsecutif,
		Streak:          user.StreakConsecutif,
		PreviousLevel:   user.BadgeNiveau,
		Level:           user.BadgeNiveau,
		EligibleLoterie: user.EligibleLoterie,
	}

	last := ""
	if user.DernierAchatDate != nil {
		last = *user.DernierAchatDate
	}
	if last != "" && last >= today {
		return out
	}

	newStreak := 1
	if last == yesterday {
		newStreak = user.StreakConsecutif + 1
	}

	day := today
	user.DernierAchatDate = &day
	user.StreakConsecutif = newStreak

	if tier := TierFor(newStreak, defs); tier > user.BadgeNiveau {
		user.BadgeNiveau = tier
		out.Promoted = true
	}
	user.EligibleLoterie = user.BadgeNiveau >= lotteryTier

	out.Streak = user.StreakConsecutif
	out.Level = user.BadgeNiveau
	out.EligibleLoterie = user.EligibleLoterie
	out.Changed = true
	return out
}

// Label returns the definition name for level, or "" for level 0.
func Label(level int, defs []models.BadgeDefinition) string {
	for _, d := range defs {
		if d.Niveau == level {
			return d.Nom
		}
	}
	return ""
}
