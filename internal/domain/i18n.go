package domain

// Translator renders a localized message by key.
type Translator interface {
	T(locale, key string, data map[string]any) string
}
