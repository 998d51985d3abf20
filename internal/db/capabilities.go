package db

import (
	"log/slog"

	"gorm.io/gorm"
)

// Capabilities is the typed result of a one-time schema probe. The dating
// service branches on these flags instead of sniffing driver error codes on
// every call, so a partially migrated schema degrades to safe defaults.
type Capabilities struct {
	Likes    bool // likes table
	Passes   bool // user_passes table
	Matches  bool // matches table
	Messages bool // messages table
	FeedView bool // optional precomputed user_feed table
	Activity bool // last_active / is_active columns on profiles
}

// Probe inspects the connected schema once at startup.
func Probe(gdb *gorm.DB, log *slog.Logger) Capabilities {
	m := gdb.Migrator()

	caps := Capabilities{
		Likes:    m.HasTable(&Like{}),
		Passes:   m.HasTable(&Pass{}),
		Matches:  m.HasTable(&Match{}),
		Messages: m.HasTable(&Message{}),
		Activity: m.HasColumn(&Profile{}, "last_active") && m.HasColumn(&Profile{}, "is_active"),
	}

	// Views do not show up through HasTable on every dialect, so the feed
	// surface is probed with a throwaway query.
	var n int64
	caps.FeedView = gdb.Table("user_feed").Count(&n).Error == nil

	log.Info("schema capabilities probed",
		"likes", caps.Likes,
		"passes", caps.Passes,
		"matches", caps.Matches,
		"messages", caps.Messages,
		"feed_view", caps.FeedView,
		"activity", caps.Activity,
	)

	return caps
}

// All returns a capability set with every optional surface present except
// the precomputed feed. Matches what AutoMigrate provisions.
func (c Capabilities) All() bool {
	return c.Likes && c.Passes && c.Matches && c.Messages && c.Activity
}
