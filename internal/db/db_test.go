package db

import (
	"net/url"
	"testing"

	"github.com/librarium/usermanagement/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	raw := URL(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "library",
		Password: "p@ss/word",
		DBName:   "library_users",
		UseSSL:   true,
	})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "/library_users", u.Path)
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss/word", password)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}

func TestURL_DisablesSSLByDefault(t *testing.T) {
	u, err := url.Parse(URL(config.DatabaseConfig{Host: "localhost", Port: 5432}))
	require.NoError(t, err)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}
