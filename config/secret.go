package config

type DetectSecretData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type PostgresSecretData struct {
	ConnectionString string `json:"connectionString"`
}
