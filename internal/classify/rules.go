package classify

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed rules.yaml
var defaultRules []byte

// Rule maps any of its keywords to a result template
type Rule struct {
	Keywords []string
	Result   Result
}

// Rules is the ordered keyword rule table plus the non-food keyword list.
// It is built once and never modified; earlier rules take priority.
type Rules struct {
	entries []Rule
	nonFood []string
}

type ruleFile struct {
	Rules   []ruleDef `yaml:"rules"`
	NonFood []string  `yaml:"non_food"`
}

type ruleDef struct {
	Keywords      []string `yaml:"keywords"`
	Category      string   `yaml:"category"`
	Subcategory   string   `yaml:"subcategory"`
	Storage       string   `yaml:"storage"`
	ShelfLifeDays *int     `yaml:"shelf_life_days"`
	Food          *bool    `yaml:"food"`
}

// DefaultRules returns the built-in rule table
func DefaultRules() (Rules, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads a rule table from a YAML file
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("reading rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules builds a rule table from YAML, keeping document order
func ParseRules(data []byte) (Rules, error) {
	var f ruleFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return Rules{}, fmt.Errorf("parsing rules: %w", err)
	}

	entries := make([]Rule, 0, len(f.Rules))
	for i, def := range f.Rules {
		if len(def.Keywords) == 0 {
			return Rules{}, fmt.Errorf("rule %d has no keywords", i+1)
		}
		for _, kw := range def.Keywords {
			if kw == "" {
				return Rules{}, fmt.Errorf("rule %d has an empty keyword", i+1)
			}
		}

		result := Unclassified()
		result.Category = def.Category
		result.Subcategory = def.Subcategory
		if def.Storage != "" {
			result.StorageClass = StorageClass(def.Storage)
			if !result.StorageClass.Valid() {
				return Rules{}, fmt.Errorf("rule %d: unknown storage class %q", i+1, def.Storage)
			}
		}
		if def.ShelfLifeDays != nil {
			if *def.ShelfLifeDays <= 0 {
				return Rules{}, fmt.Errorf("rule %d: shelf life must be positive", i+1)
			}
			result.ShelfLifeDays = def.ShelfLifeDays
		}
		if def.Food != nil {
			result.IsFood = *def.Food
		}

		entries = append(entries, Rule{
			Keywords: append([]string(nil), def.Keywords...),
			Result:   result,
		})
	}

	return Rules{
		entries: entries,
		nonFood: append([]string(nil), f.NonFood...),
	}, nil
}

// Len returns the number of rules
func (r Rules) Len() int {
	return len(r.entries)
}

// Match returns the template of the first rule with a keyword contained in name
func (r Rules) Match(name string) (Result, bool) {
	for _, rule := range r.entries {
		for _, kw := range rule.Keywords {
			if strings.Contains(name, kw) {
				return rule.Result.clone(), true
			}
		}
	}
	return Result{}, false
}

// IsFood reports whether name contains none of the non-food keywords
func (r Rules) IsFood(name string) bool {
	for _, kw := range r.nonFood {
		if strings.Contains(name, kw) {
			return false
		}
	}
	return true
}

// Fallback is the result for a name nothing else could classify
func (r Rules) Fallback(name string) Result {
	result := Unclassified()
	result.IsFood = r.IsFood(name)
	return result
}
