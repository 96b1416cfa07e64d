package locales

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

//go:embed *.json
var localeFS embed.FS

// Bundle holds the translations embedded into the binary.
type Bundle struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
	logger          logrus.FieldLogger
}

// New initializes the i18n bundle by loading language files and setting the default language.
// An unparsable default language falls back to Russian.
func New(defaultLangCode string, logger logrus.FieldLogger) (*Bundle, error) {
	defaultLanguage, err := language.Parse(defaultLangCode)
	if err != nil {
		logger.WithError(err).Warnf("Failed to parse default language code %q, falling back to Russian", defaultLangCode)
		defaultLanguage = language.Russian
	}

	bundle := i18n.NewBundle(defaultLanguage)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := localeFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded locales directory: %w", err)
	}

	loaded := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, file.Name()); err != nil {
			return nil, fmt.Errorf("failed to load message file %s: %w", file.Name(), err)
		}
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no message files embedded")
	}
	logger.WithFields(logrus.Fields{
		"files":    loaded,
		"language": defaultLanguage.String(),
	}).Info("i18n bundle initialized")

	return &Bundle{bundle: bundle, defaultLanguage: defaultLanguage, logger: logger}, nil
}

// DefaultLanguage returns the configured default language tag.
func (b *Bundle) DefaultLanguage() language.Tag {
	return b.defaultLanguage
}

// NewLocalizer creates a localizer for the given language preferences
// (e.g. "en", "ru" or an Accept-Language string). The default language is
// always appended as the last preference.
func (b *Bundle) NewLocalizer(langPrefs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(b.bundle, append(langPrefs, b.defaultLanguage.String())...)
}

// Message retrieves and formats a message by its ID using the provided localizer.
// If the message cannot be localized the ID itself is returned.
func (b *Bundle) Message(localizer *i18n.Localizer, msgID string, templateData map[string]any) string {
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: templateData,
	})
	if err != nil {
		b.logger.WithError(err).WithField("message_id", msgID).Error("Failed to localize message")
		return msgID
	}
	return msg
}
