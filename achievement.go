package main

// AchievementDef describes one unlockable achievement
type AchievementDef struct {
	ID          string
	Name        string
	Description string
}

var Achievements = []AchievementDef{
	{"first_blood", "First Blood", "Get your first kill"},
	{"piercer", "Piercer", "Hit two players with one super"},
	{"sharpshooter", "Sharpshooter", "Reach 100 total kills"},
	{"centurion", "Centurion", "Reach 1000 total kills"},
	{"untouchable", "Untouchable", "Get 5 kills in one session without dying"},
	{"veteran", "Veteran", "Reach level 10"},
	{"survivor", "Survivor", "Play for 1 hour total"},
}

// CheckAchievements unlocks whatever the account now qualifies for, given
// its updated lifetime stats and the session that just ended. It returns the
// newly unlocked achievements.
func CheckAchievements(db *DB, accountID int64, stats *StatsRow, session CombatStats) []AchievementDef {
	if db == nil || stats == nil {
		return nil
	}

	qualifies := func(id string) bool {
		switch id {
		case "first_blood":
			return stats.Kills >= 1
		case "piercer":
			return session.Pierces >= 1
		case "sharpshooter":
			return stats.Kills >= 100
		case "centurion":
			return stats.Kills >= 1000
		case "untouchable":
			return session.Kills >= 5 && session.Deaths == 0
		case "veteran":
			return stats.Level >= 10
		case "survivor":
			return stats.Playtime >= 3600
		}
		return false
	}

	var unlocked []AchievementDef
	for _, def := range Achievements {
		if !qualifies(def.ID) {
			continue
		}
		if isNew, err := db.UnlockAchievement(accountID, def.ID); err == nil && isNew {
			unlocked = append(unlocked, def)
		}
	}
	return unlocked
}
