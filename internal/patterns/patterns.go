// Package patterns holds the static catalog of suspicious call-data substrings
// and phishing indicators used by the contract analyzer and phishing checker.
//
// A Catalog is an immutable value. It is built once at startup (Default, then
// optionally Extend with entries loaded from a YAML file) and passed by
// reference to the components that read it.
package patterns

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Category names a group of call-data patterns.
type Category string

const (
	CategoryHoneypot Category = "honeypot"
	CategoryDrainer  Category = "drainer"
	CategoryRugPull  Category = "rug_pull"
)

// Categories lists the pattern categories in the fixed iteration order every
// consumer must respect.
var Categories = []Category{CategoryHoneypot, CategoryDrainer, CategoryRugPull}

var ErrEmptyPattern = errors.New("pattern must not be empty")

// Catalog is the read-only pattern registry.
type Catalog struct {
	honeypot []string
	drainer  []string
	rugPull  []string
	domains  []string
	keywords []string
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		honeypot: []string{"onlyOwner", "blacklist", "addToBlacklist", "_hidden", "pause"},
		drainer:  []string{"approve", "increaseAllowance", "transferFrom", "setApprovalForAll"},
		rugPull:  []string{"mint", "setTaxFee", "excludeFromFee", "renounceOwnership"},
		domains: []string{
			"fake-uniswap.com",
			"metamask-secure.io",
			"polygon-airdrop.xyz",
			"opensea-claim.com",
			"uniswap-rewards.net",
			"free-nft-mint.io",
			"pancakeswap-airdrop.com",
		},
		keywords: []string{"free", "airdrop", "claim", "reward", "secure", "official"},
	}
}

// Patterns returns a copy of the patterns registered for a category.
func (c *Catalog) Patterns(cat Category) []string {
	switch cat {
	case CategoryHoneypot:
		return clone(c.honeypot)
	case CategoryDrainer:
		return clone(c.drainer)
	case CategoryRugPull:
		return clone(c.rugPull)
	default:
		return nil
	}
}

// PhishingDomains returns a copy of the blacklisted domains.
func (c *Catalog) PhishingDomains() []string { return clone(c.domains) }

// Keywords returns a copy of the suspicious URL keywords.
func (c *Catalog) Keywords() []string { return clone(c.keywords) }

// Extension adds entries to a catalog. Entries already present
// (case-insensitively) are ignored.
type Extension struct {
	Honeypot        []string `yaml:"honeypot"`
	Drainer         []string `yaml:"drainer"`
	RugPull         []string `yaml:"rug_pull"`
	PhishingDomains []string `yaml:"phishing_domains"`
	Keywords        []string `yaml:"keywords"`
}

// Extend returns a new catalog with ext appended after the existing entries.
// The receiver is left untouched.
func (c *Catalog) Extend(ext Extension) (*Catalog, error) {
	out := &Catalog{}
	var err error
	if out.honeypot, err = merge(c.honeypot, ext.Honeypot); err != nil {
		return nil, fmt.Errorf("honeypot: %w", err)
	}
	if out.drainer, err = merge(c.drainer, ext.Drainer); err != nil {
		return nil, fmt.Errorf("drainer: %w", err)
	}
	if out.rugPull, err = merge(c.rugPull, ext.RugPull); err != nil {
		return nil, fmt.Errorf("rug_pull: %w", err)
	}
	if out.domains, err = merge(c.domains, ext.PhishingDomains); err != nil {
		return nil, fmt.Errorf("phishing_domains: %w", err)
	}
	if out.keywords, err = merge(c.keywords, ext.Keywords); err != nil {
		return nil, fmt.Errorf("keywords: %w", err)
	}
	return out, nil
}

// ParseExtension decodes a YAML catalog extension document.
func ParseExtension(data []byte) (Extension, error) {
	var ext Extension
	if err := yaml.UnmarshalStrict(data, &ext); err != nil {
		return Extension{}, fmt.Errorf("parse catalog extension: %w", err)
	}
	return ext, nil
}

// Load builds the default catalog and, when path is set, extends it with the
// YAML file at path.
func Load(path string) (*Catalog, error) {
	base := Default()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog extension: %w", err)
	}
	ext, err := ParseExtension(data)
	if err != nil {
		return nil, err
	}
	return base.Extend(ext)
}

func merge(base, extra []string) ([]string, error) {
	out := clone(base)
	seen := make(map[string]bool, len(base)+len(extra))
	for _, p := range base {
		seen[strings.ToLower(p)] = true
	}
	for _, p := range extra {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, ErrEmptyPattern
		}
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out, nil
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
