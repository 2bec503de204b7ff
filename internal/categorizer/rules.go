package categorizer

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"gopkg.in/yaml.v3"
)

const regexPrefix = "regex:"

//go:embed default_rules.yaml
var defaultRulesYAML []byte

var (
	ErrEmptyPattern    = errors.New("rule pattern is empty")
	ErrUnknownCategory = errors.New("unknown category")
)

// Rule maps merchant text to a category. Plain patterns are case-insensitive
// substrings; a "regex:" prefix makes the remainder a regular expression.
type Rule struct {
	Name     string `yaml:"name"`
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
	Priority int    `yaml:"priority"`

	category transaction.Category
	literal  string
	re       *regexp.Regexp
}

// Matches reports whether the upper-cased merchant text satisfies the rule
func (r *Rule) Matches(upperMerchant string) bool {
	if r.re != nil {
		return r.re.MatchString(upperMerchant)
	}
	return strings.Contains(upperMerchant, r.literal)
}

func (r *Rule) compile() error {
	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("rule %q: %w", r.Name, ErrEmptyPattern)
	}
	c, ok := transaction.ParseCategory(r.Category)
	if !ok {
		return fmt.Errorf("rule %q: %w: %s", r.Name, ErrUnknownCategory, r.Category)
	}
	r.category = c

	if expr, isRegex := strings.CutPrefix(r.Pattern, regexPrefix); isRegex {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return fmt.Errorf("rule %q: invalid regex: %w", r.Name, err)
		}
		r.re = re
		return nil
	}
	r.literal = strings.ToUpper(r.Pattern)
	return nil
}

// RuleSet is the ordered, read-only rule list plus classifier hint aliases
type RuleSet struct {
	Version     string
	rules       []Rule
	hintAliases map[string]transaction.Category
}

type ruleFile struct {
	Version     string            `yaml:"version"`
	HintAliases map[string]string `yaml:"hint_aliases"`
	Rules       []Rule            `yaml:"rules"`
}

// ParseRules builds a rule set from YAML. Rules are ordered by ascending
// priority; ties keep file order.
func ParseRules(data []byte) (*RuleSet, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	return NewRuleSet(f.Version, f.Rules, f.HintAliases)
}

// NewRuleSet validates and orders rules
func NewRuleSet(version string, rules []Rule, hintAliases map[string]string) (*RuleSet, error) {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	for i := range ordered {
		if err := ordered[i].compile(); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	aliases := make(map[string]transaction.Category, len(hintAliases))
	for k, v := range hintAliases {
		c, ok := transaction.ParseCategory(v)
		if !ok {
			return nil, fmt.Errorf("hint alias %q: %w: %s", k, ErrUnknownCategory, v)
		}
		aliases[strings.ToUpper(strings.TrimSpace(k))] = c
	}

	return &RuleSet{Version: version, rules: ordered, hintAliases: aliases}, nil
}

// LoadRules reads a YAML rule file, or the built-in rules when path is empty
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return ParseRules(data)
}

// DefaultRules returns the built-in rule set
func DefaultRules() (*RuleSet, error) {
	return ParseRules(defaultRulesYAML)
}

// Rules returns the ordered rules
func (s *RuleSet) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// hintCategory maps a classifier hint through aliases, then known category names
func (s *RuleSet) hintCategory(hint string) (transaction.Category, bool) {
	if c, ok := s.hintAliases[strings.ToUpper(strings.TrimSpace(hint))]; ok {
		return c, true
	}
	return transaction.ParseCategory(hint)
}

// NewResolverFromConfig loads the configured rule set and hint threshold
func NewResolverFromConfig(cfg *config.ScoringConfig) (*Resolver, error) {
	rules, err := LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	threshold := cfg.HintConfidenceFloor
	if threshold <= 0 {
		threshold = DefaultHintThreshold
	}
	return NewResolver(rules, threshold), nil
}
