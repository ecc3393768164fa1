package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedTestData resets the database and populates it with demo users and
// graph rows.
//
// Behavior:
//  1. Clears existing data in all graph tables.
//  2. Creates 20 users (10 male, 10 female) with hashed passwords.
//  3. Generates ~200 likes with ~70% like rate; every 3rd ensures a mutual
//     like and creates the canonical match row for the pair.
//
// Compatible with both MySQL and SQLite (AUTO_INCREMENT reset skipped for SQLite).
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"notifications", "blocks", "matches", "likes", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// Reset auto-increment sequences (only for MySQL)
	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name = 'users'")
	}

	// --- Seed Users ---
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	for i := 1; i <= 20; i++ {
		username := fmt.Sprintf("user%d", i)
		email := fmt.Sprintf("user%d@example.com", i)

		gender := "male"
		if i > 10 {
			gender = "female"
		}

		user := User{
			Username:     username,
			Email:        email,
			PasswordHash: string(hash),
			Gender:       gender,
			Active:       true,
			LastLoginAt:  time.Now().Add(-time.Duration(r.Intn(500)) * time.Hour),
		}

		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
	}
	log.Println("Seeded 20 users.")

	// --- Seed Likes (~200) ---
	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "liker_id"}, {Name: "liked_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_like", "updated_at"}),
	}

	counter := 0
	for likerID := uint64(1); likerID <= 20; likerID++ {
		for j := 0; j < 12; j++ { // each user decides on ~12 others
			likedID := uint64(r.Intn(20) + 1)
			if likerID == likedID {
				continue
			}

			var liker, liked User
			if err := db.First(&liker, likerID).Error; err != nil {
				continue
			}
			if err := db.First(&liked, likedID).Error; err != nil {
				continue
			}
			if liker.Gender == liked.Gender {
				continue
			}

			// like probability 70%
			isLike := r.Intn(100) < 70

			// guarantee mutual likes every 3rd pair
			if counter%3 == 0 {
				isLike = true
				recip := Like{LikerID: likedID, LikedID: likerID, IsLike: true}
				db.Clauses(upsert).Create(&recip)
			}

			like := Like{LikerID: likerID, LikedID: likedID, IsLike: isLike}
			if err := db.Clauses(upsert).Create(&like).Error; err != nil {
				return fmt.Errorf("failed to seed like: %w", err)
			}

			if counter%3 == 0 {
				seedMatch(db, likerID, likedID)
			}

			counter++
		}
	}

	// refresh denormalized counters from the seeded rows
	for id := uint64(1); id <= 20; id++ {
		var likeCount, matchCount int64
		db.Model(&Like{}).Where("liked_id = ? AND is_like = ?", id, true).Count(&likeCount)
		db.Model(&Match{}).Where("user1_id = ? OR user2_id = ?", id, id).Count(&matchCount)
		db.Model(&User{}).Where("id = ?", id).Updates(map[string]interface{}{
			"like_count":  likeCount,
			"match_count": matchCount,
		})
	}

	return nil
}

func seedMatch(db *gorm.DB, a, b uint64) {
	u1, u2 := a, b
	if u2 < u1 {
		u1, u2 = u2, u1
	}
	match := Match{
		ID:      fmt.Sprintf("seed-%d-%d", u1, u2),
		User1ID: u1,
		User2ID: u2,
	}
	db.Clauses(clause.OnConflict{DoNothing: true}).Create(&match)
}
