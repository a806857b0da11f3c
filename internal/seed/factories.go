// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/slug"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	// slug counters keep generated post slugs unique within a run
	slugSeen map[string]int
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	// seed gofakeit for richer content
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{db: db, opts: opts, slugSeen: make(map[string]int), nextID: 1000}
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username: gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Email:    gofakeit.Email(),
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		user.Password = "password123"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		user.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s <%s>", user.Username, user.Email)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateCategory persists a category with a slug derived from its name.
// Existing categories with the same name are reused.
func (f *Factory) CreateCategory(name, description string) (*models.Category, error) {
	category := &models.Category{
		Name:        name,
		Slug:        slug.Derive(name),
		Description: description,
	}

	if f.opts.DryRun {
		f.nextID++
		category.ID = f.nextID
		log.Printf("[dry-run] CreateCategory: %s", name)
		return category, nil
	}

	err := f.db.Where(models.Category{Name: name}).
		Attrs(models.Category{Slug: category.Slug, Description: description}).
		FirstOrCreate(category).Error
	if err != nil {
		return nil, err
	}
	return category, nil
}

// BuildPost constructs a post struct for the given author and category but
// does not persist it. Useful for batching.
func (f *Factory) BuildPost(author *models.User, category *models.Category, overrides ...func(*models.Post)) *models.Post {
	title := strings.TrimSuffix(gofakeit.Sentence(gofakeit.Number(3, 7)), ".")
	content := gofakeit.Paragraph(gofakeit.Number(2, 5), 3, 8, "\n\n")

	post := &models.Post{
		Title:       title,
		Content:     content,
		Excerpt:     truncate(gofakeit.Sentence(12), 200),
		Slug:        f.uniqueSlug(title),
		Tags:        pickTags(),
		AuthorID:    author.ID,
		CategoryID:  category.ID,
		IsPublished: gofakeit.Number(0, 9) > 1, // roughly one draft in five
		ViewCount:   uint(gofakeit.Number(0, 2500)),
	}

	// realistic created_at spread
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	daysBack := r.Intn(maxDays)
	hoursBack := r.Intn(24)
	minsBack := r.Intn(60)
	post.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost constructs and persists a sample `models.Post`.
func (f *Factory) CreatePost(author *models.User, category *models.Category, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, category, overrides...)

	if f.opts.DryRun {
		f.nextID++
		post.ID = f.nextID
		log.Printf("[dry-run] CreatePost: author=%d slug=%q", post.AuthorID, post.Slug)
		return post, nil
	}

	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreatePostsBatch persists multiple posts in a single DB call when possible.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	if len(posts) == 0 {
		return nil
	}
	batch := f.opts.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return f.db.CreateInBatches(&posts, batch).Error
}

// CreateComment constructs and persists a sample `models.Comment` on the
// provided post authored by the provided user.
func (f *Factory) CreateComment(author *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Content:  gofakeit.Sentence(gofakeit.Number(5, 14)),
		AuthorID: &author.ID,
		PostID:   post.ID,
	}

	for _, override := range overrides {
		override(comment)
	}

	if f.opts.DryRun {
		f.nextID++
		comment.ID = f.nextID
		return comment, nil
	}

	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// uniqueSlug derives a slug from the title and suffixes a counter when the
// same derivation was already handed out this run.
func (f *Factory) uniqueSlug(title string) string {
	base := slug.Derive(title)
	if base == "" {
		base = "post"
	}
	n := f.slugSeen[base]
	f.slugSeen[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

var seedTags = []string{
	"go", "tutorial", "devops", "databases", "web", "testing",
	"performance", "opinion", "release", "howto", "architecture", "tools",
}

func pickTags() []string {
	count := gofakeit.Number(0, 4)
	if count == 0 {
		return nil
	}
	picked := make([]string, 0, count)
	seen := make(map[string]bool, count)
	for len(picked) < count {
		tag := seedTags[gofakeit.Number(0, len(seedTags)-1)]
		if seen[tag] {
			continue
		}
		seen[tag] = true
		picked = append(picked, tag)
	}
	return picked
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
