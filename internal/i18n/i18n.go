package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/pavelanni/quizgen/internal/model"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var (
	bundle  *i18n.Bundle
	matcher language.Matcher
)

// Init loads the translation bundle with lang as the default language.
func Init(lang string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("parse language %q: %w", lang, err)
	}

	b := i18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := b.ParseMessageFileBytes(data, e.Name()); err != nil {
			return fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}

	bundle = b
	// The default language goes first so it wins when nothing matches.
	tags := []language.Tag{tag}
	for _, t := range b.LanguageTags() {
		if t != tag {
			tags = append(tags, t)
		}
	}
	matcher = language.NewMatcher(tags)
	return nil
}

// Match returns the supported language that best fits the given
// Accept-Language values or language tags.
func Match(prefs ...string) language.Tag {
	if matcher == nil {
		return language.English
	}
	tag, _ := language.MatchStrings(matcher, prefs...)
	base, _ := tag.Base()
	return language.Make(base.String())
}

// LanguageName returns the English name of a language tag such as "sr" or
// "es-MX". Values that are not tags, like "Serbian", are returned as is.
func LanguageName(s string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	tag, err := language.Parse(s)
	if err != nil {
		return s
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return s
}

// NewLocalizer creates a localizer for the given languages in order of preference.
func NewLocalizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(bundle, langs...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	return i18n.NewLocalizer(bundle, "en")
}

func localize(ctx context.Context, cfg *i18n.LocalizeConfig) (string, bool) {
	if bundle == nil {
		return "", false
	}
	s, err := localizerFromCtx(ctx).Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "error", err)
		return "", false
	}
	return s, true
}

// T translates a message by ID.
func T(ctx context.Context, msgID string) string {
	if s, ok := localize(ctx, &i18n.LocalizeConfig{MessageID: msgID}); ok {
		return s
	}
	return msgID
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	if s, ok := localize(ctx, &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data}); ok {
		return s
	}
	return msgID
}

// Tp translates a pluralized message by ID.
func Tp(ctx context.Context, msgID string, count int) string {
	s, ok := localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
	if ok {
		return s
	}
	return msgID
}

// Labels returns the localizable labels for the context's language.
// Missing translations keep the English default and English has no hint.
func Labels(ctx context.Context) model.Labels {
	l := model.DefaultLabels()
	for id, field := range map[string]*string{
		"LabelPaddingOption": &l.PaddingOption,
		"LabelTrueWord":      &l.TrueWord,
		"LabelFalseWord":     &l.FalseWord,
	} {
		if s, ok := localize(ctx, &i18n.LocalizeConfig{MessageID: id}); ok {
			*field = s
		}
	}
	if bundle != nil {
		if s, err := localizerFromCtx(ctx).Localize(&i18n.LocalizeConfig{MessageID: "LabelFallbackHint"}); err == nil {
			l.FallbackHint = s
		}
	}
	return l
}
