// Package useragent classifies user agent strings into the coarse device
// types tracked by the analytics aggregates: mobile, tablet or desktop.
package useragent

import (
	_ "embed"
	"fmt"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

const (
	Mobile  = "mobile"
	Tablet  = "tablet"
	Desktop = "desktop"
)

//go:embed rules.yml
var rulesFile []byte

type rule struct {
	Regex string `yaml:"regex"`
}

type ruleSet struct {
	Tablet []rule `yaml:"tablet"`
	Mobile []rule `yaml:"mobile"`
}

type classifier struct {
	tablet []*pcre.Regexp
	mobile []*pcre.Regexp
}

var (
	instance *classifier
	once     sync.Once
)

func getClassifier() *classifier {
	once.Do(func() {
		instance = &classifier{}

		var rules ruleSet
		if err := yaml.Unmarshal(rulesFile, &rules); err != nil {
			fmt.Printf("Error parsing rules.yml: %v\n", err)
			return
		}

		instance.tablet = compileRules(rules.Tablet)
		instance.mobile = compileRules(rules.Mobile)
	})
	return instance
}

func compileRules(rules []rule) []*pcre.Regexp {
	compiled := make([]*pcre.Regexp, 0, len(rules))
	for _, r := range rules {
		regex, err := pcre.Compile(r.Regex)
		if err != nil {
			fmt.Printf("Error compiling rule %q: %v\n", r.Regex, err)
			continue
		}
		compiled = append(compiled, regex)
	}
	return compiled
}

// Classify returns the device type for a user agent string. Tablet rules
// run before mobile rules; anything unmatched is treated as desktop.
func Classify(userAgent string) string {
	if userAgent == "" {
		return Desktop
	}

	c := getClassifier()

	for _, regex := range c.tablet {
		if regex.MatchString(userAgent) {
			return Tablet
		}
	}
	for _, regex := range c.mobile {
		if regex.MatchString(userAgent) {
			return Mobile
		}
	}

	return Desktop
}
