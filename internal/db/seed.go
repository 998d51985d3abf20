package db

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type seedProfile struct {
	FirstName string
	LastName  string
	Fursona   string
	Age       int
	Gender    string
	Sexuality string
	Pronouns  string
	Bio       string
	Interests []string
}

var seedProfiles = []seedProfile{
	{"Alex", "Wolf", "Wolf", 25, "Male", "Straight", "He/Him", "Love hiking and coffee dates", []string{"Gaming", "Art", "Nature"}},
	{"Luna", "Fox", "Fox", 23, "Female", "Straight", "She/Her", "Artist and gamer looking for player 2", []string{"Art", "Gaming", "Anime"}},
	{"Riley", "Cat", "Cat", 27, "Non-binary", "Pansexual", "They/Them", "Chill cat who loves music and good vibes", []string{"Music", "Reading", "Travel"}},
	{"Max", "Bear", "Bear", 29, "Male", "Gay", "He/Him", "Big softie, better cook than I look", []string{"Cooking", "Movies", "Hiking"}},
	{"Sam", "Otter", "Otter", 24, "Male", "Bisexual", "He/Him", "River swims and board games", []string{"Swimming", "Board games"}},
	{"Morgan", "Deer", "Deer", 26, "Female", "Lesbian", "She/Her", "Forest walks, film photography", []string{"Photography", "Nature"}},
	{"Blake", "Dragon", "Dragon", 31, "Male", "Straight", "He/Him", "Hoarding books instead of gold", []string{"Reading", "History"}},
	{"Quinn", "Rabbit", "Rabbit", 22, "Female", "Pansexual", "She/They", "Always up for a midnight snack run", []string{"Baking", "Running"}},
	{"Jesse", "Hawk", "Hawk", 28, "Male", "Gay", "He/Him", "Sky's the limit", []string{"Climbing", "Travel"}},
	{"Rowan", "Lynx", "Lynx", 30, "Non-binary", "Queer", "They/Them", "Quiet until the playlist starts", []string{"Music", "Gaming"}},
}

// SeedTestData resets the database and populates it with demo profiles,
// likes/passes and a few conversations.
//
// Behavior:
//  1. Clears existing data in all dating tables.
//  2. Creates the demo profile roster with hashed passwords.
//  3. Generates likes with ~70% probability, guaranteeing mutual likes for
//     every 3rd pair, and materializes a match (plus an opening message)
//     for each mutual pair.
func SeedTestData(gdb *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"messages", "matches", "likes", "user_passes", "profiles"} {
		if err := gdb.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	log.Println("Cleared existing data")

	// --- Seed profiles ---
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	ids := make([]string, 0, len(seedProfiles))
	for i, sp := range seedProfiles {
		p := Profile{
			ID:               uuid.NewString(),
			Email:            fmt.Sprintf("user%d@example.com", i+1),
			PasswordHash:     string(hash),
			FirstName:        sp.FirstName,
			LastName:         sp.LastName,
			DisplayName:      sp.FirstName,
			Age:              sp.Age,
			Gender:           sp.Gender,
			Sexuality:        sp.Sexuality,
			Fursona:          sp.Fursona,
			Pronouns:         sp.Pronouns,
			Bio:              sp.Bio,
			Interests:        sp.Interests,
			LastActive:       time.Now().Add(-time.Duration(r.Intn(500)) * time.Hour),
			IsActive:         true,
			ProfileCompleted: true,
		}
		if err := gdb.Create(&p).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
		ids = append(ids, p.ID)
	}
	log.Printf("Seeded %d profiles.", len(ids))

	// --- Seed likes, matches, messages ---
	counter := 0
	for i, likerID := range ids {
		for j := 0; j < 5; j++ {
			likedID := ids[r.Intn(len(ids))]
			if likedID == likerID {
				continue
			}

			liked := r.Intn(100) < 70

			// guarantee a mutual like every 3rd pair
			if counter%3 == 0 {
				liked = true
				recip := Like{LikerID: likedID, LikedID: likerID}
				gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&recip)
			}

			if liked {
				edge := Like{LikerID: likerID, LikedID: likedID}
				if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
					return fmt.Errorf("failed to seed like: %w", err)
				}
			} else {
				pass := Pass{UserID: likerID, PassedUserID: likedID}
				if err := gdb.Clauses(clause.OnConflict{DoNothing: true}).Create(&pass).Error; err != nil {
					return fmt.Errorf("failed to seed pass: %w", err)
				}
			}

			if counter%3 == 0 {
				if err := seedMatchWithOpener(gdb, likerID, likedID, i); err != nil {
					return err
				}
			}

			counter++
		}
	}

	return nil
}

func seedMatchWithOpener(gdb *gorm.DB, a, b string, i int) error {
	u1, u2 := a, b
	if u2 < u1 {
		u1, u2 = u2, u1
	}

	var existing Match
	err := gdb.Where("user1_id = ? AND user2_id = ?", u1, u2).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up match: %w", err)
	}

	now := time.Now()
	m := Match{ID: uuid.NewString(), User1ID: u1, User2ID: u2, LastMessageAt: now}
	if err := gdb.Create(&m).Error; err != nil {
		return fmt.Errorf("failed to seed match: %w", err)
	}

	msg := Message{
		ID:          uuid.NewString(),
		MatchID:     m.ID,
		SenderID:    a,
		ReceiverID:  b,
		Content:     fmt.Sprintf("hey there! (opener %d)", i+1),
		MessageType: "text",
	}
	if err := gdb.Create(&msg).Error; err != nil {
		return fmt.Errorf("failed to seed message: %w", err)
	}
	return nil
}

// SeedMinimalTestData inserts a small deterministic dataset used by tests.
func SeedMinimalTestData(gdb *gorm.DB) error {
	for _, table := range []string{"messages", "matches", "likes", "user_passes", "profiles"} {
		if err := gdb.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}

	profiles := []Profile{
		{ID: "u1", Email: "u1@test.com", PasswordHash: "x", FirstName: "Alex", Age: 25, Fursona: "Wolf", ProfileCompleted: true, LastActive: time.Now()},
		{ID: "u2", Email: "u2@test.com", PasswordHash: "x", FirstName: "Luna", Age: 23, Fursona: "Fox", ProfileCompleted: true, LastActive: time.Now()},
		{ID: "u3", Email: "u3@test.com", PasswordHash: "x", FirstName: "Riley", Age: 27, Fursona: "Cat", ProfileCompleted: true, LastActive: time.Now()},
		{ID: "u4", Email: "u4@test.com", PasswordHash: "x", FirstName: "Max", Age: 29, Fursona: "Bear", ProfileCompleted: false, LastActive: time.Now()},
	}
	if err := gdb.Create(&profiles).Error; err != nil {
		return err
	}

	likes := []Like{
		{LikerID: "u2", LikedID: "u1"}, // u2 likes u1 (one half of a potential match)
		{LikerID: "u3", LikedID: "u1"}, // u3 likes u1 (one-way)
	}
	if err := gdb.Create(&likes).Error; err != nil {
		return err
	}

	return nil
}
