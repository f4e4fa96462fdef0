package mastodon

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ClientCredentials identify a registered application. They are stored one
// value per line: client id, client secret, instance URL.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
}

// UserCredentials hold a user access token. They are stored one value per
// line: access token, instance URL.
type UserCredentials struct {
	AccessToken string
	APIBaseURL  string
}

// LoadClientCredentials reads a client credentials file.
func LoadClientCredentials(path string) (ClientCredentials, error) {
	lines, err := readLines(path)
	if err != nil {
		return ClientCredentials{}, err
	}
	if len(lines) < 2 {
		return ClientCredentials{}, fmt.Errorf("client credentials %s: expected client id and secret", path)
	}

	creds := ClientCredentials{ClientID: lines[0], ClientSecret: lines[1]}
	if len(lines) > 2 {
		creds.APIBaseURL = lines[2]
	}
	return creds, nil
}

// Save writes c to path, readable by the owner only.
func (c ClientCredentials) Save(path string) error {
	return writeLines(path, c.ClientID, c.ClientSecret, c.APIBaseURL)
}

// LoadUserCredentials reads a user credentials file.
func LoadUserCredentials(path string) (UserCredentials, error) {
	lines, err := readLines(path)
	if err != nil {
		return UserCredentials{}, err
	}
	if len(lines) < 1 {
		return UserCredentials{}, fmt.Errorf("user credentials %s: expected access token", path)
	}

	creds := UserCredentials{AccessToken: lines[0]}
	if len(lines) > 1 {
		creds.APIBaseURL = lines[1]
	}
	return creds, nil
}

// ResolveUserCredentials accepts either the path of a user credentials file
// or a bare access token. fallbackBaseURL is used when the credentials do not
// name an instance.
func ResolveUserCredentials(value, fallbackBaseURL string) (UserCredentials, error) {
	if value == "" {
		return UserCredentials{}, errors.New("no user credentials configured")
	}

	creds, err := LoadUserCredentials(value)
	if errors.Is(err, fs.ErrNotExist) {
		creds, err = UserCredentials{AccessToken: value}, nil
	}
	if err != nil {
		return UserCredentials{}, err
	}

	if creds.APIBaseURL == "" {
		creds.APIBaseURL = fallbackBaseURL
	}
	return creds, nil
}

// Save writes u to path, readable by the owner only.
func (u UserCredentials) Save(path string) error {
	return writeLines(path, u.AccessToken, u.APIBaseURL)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", path, err)
	}
	return lines, nil
}

func writeLines(path string, lines ...string) error {
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}
