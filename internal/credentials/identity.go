package credentials

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Word lists for generated display names
var adjectives = []string{
	"happy", "sunny", "brave", "bright", "cool", "swift", "clever", "jolly",
	"mighty", "super", "wild", "lucky", "magic", "bouncy", "daring", "eager",
	"gentle", "jazzy", "lively", "merry", "noble", "perky", "quick", "snappy",
	"zippy", "bold", "cosmic", "epic", "groovy", "quiet",
}

var nouns = []string{
	"dragon", "tiger", "eagle", "dolphin", "panda", "lion", "wolf", "bear",
	"fox", "hawk", "phoenix", "rocket", "wizard", "knight", "robot", "comet",
	"ranger", "captain", "explorer", "thunder", "storm", "racer", "puzzler", "scribe",
	"speller", "owl", "otter", "falcon", "lynx", "badger",
}

// GenerateDisplayName returns a random "adjective-noun" name for accounts that have none,
// such as OAuth sign-ins whose profile name is unusable
func GenerateDisplayName() (string, error) {
	adjective, err := randomElement(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := randomElement(nouns)
	if err != nil {
		return "", err
	}
	return adjective + "-" + noun, nil
}

// GenerateDisplayNameWithSuffix appends a random number, for when the plain name is taken
func GenerateDisplayNameWithSuffix() (string, error) {
	name, err := GenerateDisplayName()
	if err != nil {
		return "", err
	}
	num, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", name, num.Int64()), nil
}

// AvatarURL returns the Gravatar identicon URL for an email address
func AvatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?d=identicon"
}

// randomElement picks a random element from a string slice
func randomElement(slice []string) (string, error) {
	if len(slice) == 0 {
		return "", nil
	}
	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(slice))))
	if err != nil {
		return "", err
	}
	return slice[num.Int64()], nil
}
