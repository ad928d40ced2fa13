package secrets

// Well-known secret keys read from the environment.
const (
	KeyBotToken      = "GUILDKIT_BOT_TOKEN"
	KeyLicenseAPIKey = "GUILDKIT_LICENSE_API_KEY"
)

// Default creates a Vault over the environment variables guildkit needs at
// runtime.
func Default() (*Vault, error) {
	return NewVault(EnvLoader(KeyBotToken, KeyLicenseAPIKey))
}

// BotToken returns the chat-platform bot token.
func (v *Vault) BotToken() string {
	return v.Get(KeyBotToken)
}

// LicenseAPIKey returns the license service API key.
func (v *Vault) LicenseAPIKey() string {
	return v.Get(KeyLicenseAPIKey)
}
