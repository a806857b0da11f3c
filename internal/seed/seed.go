package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"inkwell/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers        int
	NumPosts        int
	CommentsPerPost int
	ShouldClean     bool
	// SkipBcrypt stores plaintext passwords; only useful when seeding large
	// user counts against a throwaway database.
	SkipBcrypt bool
	// DryRun logs what would be created without touching the database.
	DryRun    bool
	MaxDays   int
	BatchSize int
}

// builtinCategories are always present after a seed run so the API has a
// stable set of category ids to post against.
var builtinCategories = []struct {
	Name        string
	Description string
}{
	{"Technology", "Software, hardware and everything in between"},
	{"Engineering", "Deep dives into how things are built"},
	{"Product", "Announcements, releases and roadmaps"},
	{"Culture", "The people side of building software"},
	{"Tutorials", "Step by step guides"},
	{"Opinion", "Takes, hot and otherwise"},
}

// Seed populates the database with demo content: categories, users, posts and
// comments, in that order.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("🌱 Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	// Clear existing data to avoid conflicts if requested
	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			log.Println("⚠️  Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	factory := NewFactory(db, opts)

	categories, err := EnsureBuiltinCategories(db, factory)
	if err != nil {
		return fmt.Errorf("failed to create categories: %w", err)
	}
	log.Printf("✓ %d categories available", len(categories))

	users, err := createUsers(db, factory, opts)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("✓ %d users created", len(users))

	posts, err := createPosts(factory, users, categories, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	commentCount, err := createComments(factory, users, posts, opts)
	if err != nil {
		return fmt.Errorf("failed to create comments: %w", err)
	}
	log.Printf("✓ %d comments created", commentCount)

	log.Println("🎉 Database seeding completed successfully!")
	return nil
}

// EnsureBuiltinCategories creates the fixed category set if missing and
// returns all of them. Safe to call repeatedly.
func EnsureBuiltinCategories(db *gorm.DB, factory *Factory) ([]*models.Category, error) {
	if factory == nil {
		factory = NewFactory(db, Options{})
	}
	categories := make([]*models.Category, 0, len(builtinCategories))
	for _, c := range builtinCategories {
		category, err := factory.CreateCategory(c.Name, c.Description)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, nil
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	sql := `TRUNCATE TABLE comments, posts, categories, users RESTART IDENTITY CASCADE;`
	return db.Exec(sql).Error
}

func createUsers(db *gorm.DB, factory *Factory, opts Options) ([]*models.User, error) {
	users := make([]*models.User, 0, opts.NumUsers)

	// Always include a known admin and a known regular account so the demo
	// environment has predictable logins.
	if opts.NumUsers >= 2 && !opts.DryRun {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		baseUsers := []models.User{
			{Username: "admin", Email: "admin@example.com", Password: string(hashedPassword), IsAdmin: true},
			{Username: "writer", Email: "writer@example.com", Password: string(hashedPassword)},
		}
		for i := range baseUsers {
			user := baseUsers[i]
			err := db.Where(models.User{Email: user.Email}).Attrs(user).FirstOrCreate(&user).Error
			if err == nil {
				users = append(users, &user)
			}
		}
	}

	for i := len(users); i < opts.NumUsers; i++ {
		user, err := factory.CreateUser()
		if err != nil {
			log.Printf("Failed to create user: %v", err)
			continue
		}
		users = append(users, user)

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d users...", i)
		}
	}

	return users, nil
}

func createPosts(factory *Factory, users []*models.User, categories []*models.Category, count int) ([]*models.Post, error) {
	if len(users) == 0 || len(categories) == 0 {
		return nil, nil
	}
	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := users[r.Intn(len(users))]
		category := categories[r.Intn(len(categories))]
		posts = append(posts, factory.BuildPost(author, category))
	}

	if err := factory.CreatePostsBatch(posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func createComments(factory *Factory, users []*models.User, posts []*models.Post, opts Options) (int, error) {
	if len(users) == 0 || opts.CommentsPerPost <= 0 {
		return 0, nil
	}
	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	total := 0
	for _, post := range posts {
		n := r.Intn(opts.CommentsPerPost + 1)
		for j := 0; j < n; j++ {
			author := users[r.Intn(len(users))]
			if _, err := factory.CreateComment(author, post); err != nil {
				return total, err
			}
			total++
		}
	}
	return total, nil
}
