package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is an on-disk description of a seed run. It lets a demo environment
// pin its dataset shape in a checked-in file instead of command line flags.
type Profile struct {
	Users           int  `yaml:"users"`
	Posts           int  `yaml:"posts"`
	CommentsPerPost int  `yaml:"comments_per_post"`
	Clean           bool `yaml:"clean"`
	SkipBcrypt      bool `yaml:"skip_bcrypt"`
	MaxDays         int  `yaml:"max_days"`
}

// LoadProfile reads a YAML seed profile and converts it to Options.
func LoadProfile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read seed profile: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Options{}, fmt.Errorf("failed to parse seed profile %s: %w", path, err)
	}
	return profile.Options(), nil
}

// Options converts a profile to seeder options, applying defaults for zero
// values.
func (p Profile) Options() Options {
	opts := Options{
		NumUsers:        p.Users,
		NumPosts:        p.Posts,
		CommentsPerPost: p.CommentsPerPost,
		ShouldClean:     p.Clean,
		SkipBcrypt:      p.SkipBcrypt,
		MaxDays:         p.MaxDays,
	}
	if opts.NumUsers <= 0 {
		opts.NumUsers = 10
	}
	if opts.NumPosts <= 0 {
		opts.NumPosts = 50
	}
	return opts
}
