package responder

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/irwan-runtuwene/botman-driver-messagebird/internal/domain"
)

// Rule maps inbound keywords to a canned reply.
type Rule struct {
	Name  string   `yaml:"name"`
	Match []string `yaml:"match"`
	Reply Reply    `yaml:"reply"`
}

// Reply is the outgoing side of a rule: plain text or one attachment.
type Reply struct {
	Text       string           `yaml:"text,omitempty"`
	Attachment *ReplyAttachment `yaml:"attachment,omitempty"`
}

// ReplyAttachment describes a media or location reply in rule files.
type ReplyAttachment struct {
	Type      string  `yaml:"type"` // image | video | audio | file | location
	URL       string  `yaml:"url,omitempty"`
	Title     string  `yaml:"title,omitempty"`
	Latitude  float64 `yaml:"latitude,omitempty"`
	Longitude float64 `yaml:"longitude,omitempty"`
}

// LoadRules loads reply rules from YAML files in a directory. Files must
// have a .yaml or .yml extension. Unreadable or invalid files are skipped
// with a warning so one bad rule cannot take the bot down.
func LoadRules(dir string, logger *slog.Logger) ([]Rule, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("rules directory does not exist, skipping", "dir", dir)
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rules dir: %w", err)
	}

	var rules []Rule
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read rule file", "path", path, "err", err)
			continue
		}

		var fileRules []Rule
		if err := yaml.Unmarshal(data, &fileRules); err != nil {
			logger.Warn("cannot parse rule file", "path", path, "err", err)
			continue
		}

		for _, rule := range fileRules {
			if rule.Name == "" {
				rule.Name = strings.TrimSuffix(name, filepath.Ext(name))
			}
			if err := validateRule(rule); err != nil {
				logger.Warn("skipping invalid rule", "rule", rule.Name, "path", path, "err", err)
				continue
			}
			logger.Info("loaded reply rule", "rule", rule.Name, "path", path)
			rules = append(rules, rule)
		}
	}

	return rules, nil
}

func validateRule(rule Rule) error {
	if len(rule.Match) == 0 {
		return fmt.Errorf("rule has no match keywords")
	}
	att := rule.Reply.Attachment
	if att == nil {
		if rule.Reply.Text == "" {
			return fmt.Errorf("rule has neither text nor attachment reply")
		}
		return nil
	}
	switch att.Type {
	case "image", "video", "audio", "file":
		if att.URL == "" {
			return fmt.Errorf("%s reply needs a url", att.Type)
		}
	case "location":
		// Coordinates of 0,0 are technically valid; nothing to check.
	default:
		return fmt.Errorf("unknown attachment type %q", att.Type)
	}
	return nil
}

// attachment converts a validated rule attachment to the domain union.
func (a *ReplyAttachment) attachment() *domain.Attachment {
	switch a.Type {
	case "image":
		return domain.NewImage(a.URL, a.Title)
	case "video":
		return domain.NewVideo(a.URL)
	case "audio":
		return domain.NewAudio(a.URL)
	case "file":
		return domain.NewFile(a.URL)
	case "location":
		return domain.NewLocation(a.Latitude, a.Longitude)
	}
	return nil
}
