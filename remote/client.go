package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Stream selects which log stream to fetch.
type Stream string

const (
	StreamAdmin  Stream = "ADM"
	StreamScript Stream = "RPT"
)

// ErrNoLogFile is returned when the remote config directory holds no
// file for the requested stream. Callers skip the source without
// treating this as a failure.
var ErrNoLogFile = errors.New("remote: no log file found")

// Client talks to the hosting provider's gameserver API: server info,
// log file download and the ban list setting.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	filesDir string
	logger   *zap.Logger
}

// New creates a Client. Fetched log files are snapshotted under
// filesDir as {serverID}.{stream}.
func New(baseURL, token, filesDir string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		http:     &http.Client{Timeout: timeout},
		filesDir: filesDir,
		logger:   logger,
	}
}

// ---- API payloads ----

type ServerInfo struct {
	Data struct {
		Gameserver struct {
			Username string `json:"username"`
			Game     string `json:"game"`
			Settings struct {
				General struct {
					Bans string `json:"bans"`
				} `json:"general"`
				Config struct {
					Mission string `json:"mission"`
				} `json:"config"`
			} `json:"settings"`
		} `json:"gameserver"`
	} `json:"data"`
}

type fileList struct {
	Data struct {
		Entries []fileEntry `json:"entries"`
	} `json:"data"`
}

type fileEntry struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	ModifiedAt int64  `json:"modified_at"`
}

type downloadToken struct {
	Data struct {
		Token struct {
			URL string `json:"url"`
		} `json:"token"`
	} `json:"data"`
}

// ---- server info ----

// Info returns the raw gameserver record for a service id.
func (c *Client) Info(ctx context.Context, serverID string) (*ServerInfo, error) {
	var info ServerInfo
	if err := c.getJSON(ctx, fmt.Sprintf("%s/services/%s/gameservers", c.baseURL, serverID), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// MapName derives the world map from the mission setting. Unknown
// missions default to chernarus.
func (c *Client) MapName(ctx context.Context, serverID string) (string, error) {
	info, err := c.Info(ctx, serverID)
	if err != nil {
		return "", err
	}
	mission := strings.ToLower(info.Data.Gameserver.Settings.Config.Mission)
	switch {
	case strings.Contains(mission, "enoch"):
		return "livonia", nil
	case strings.Contains(mission, "sakhal"):
		return "sahkal", nil
	default:
		return "chernarus", nil
	}
}

// ---- log files ----

// FetchLatestLog downloads the newest log file of the given stream for
// the server and snapshots it under the files dir. Returns the file
// contents, or ErrNoLogFile when the config directory has none.
func (c *Client) FetchLatestLog(ctx context.Context, serverID string, stream Stream) ([]byte, error) {
	info, err := c.Info(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("remote: server info for %s: %w", serverID, err)
	}
	username := info.Data.Gameserver.Username
	game := strings.ToLower(info.Data.Gameserver.Game)

	var configDir string
	switch game {
	case "dayzps":
		configDir = fmt.Sprintf("/games/%s/noftp/dayzps/config", username)
	case "dayzxb":
		configDir = fmt.Sprintf("/games/%s/noftp/dayzxb/config", username)
	default:
		return nil, fmt.Errorf("remote: unsupported game type %q for server %s", game, serverID)
	}

	listURL := fmt.Sprintf("%s/services/%s/gameservers/file_server/list?dir=%s",
		c.baseURL, serverID, url.QueryEscape(configDir))
	var list fileList
	if err := c.getJSON(ctx, listURL, &list); err != nil {
		return nil, fmt.Errorf("remote: list %s: %w", configDir, err)
	}

	suffix := "." + string(stream)
	var newest *fileEntry
	for i := range list.Data.Entries {
		e := &list.Data.Entries[i]
		if e.Type != "file" || !strings.HasSuffix(e.Name, suffix) {
			continue
		}
		if newest == nil || e.ModifiedAt > newest.ModifiedAt {
			newest = e
		}
	}
	if newest == nil {
		return nil, ErrNoLogFile
	}

	tokenURL := fmt.Sprintf("%s/services/%s/gameservers/file_server/download?file=%s",
		c.baseURL, serverID, url.QueryEscape(newest.Path))
	var tok downloadToken
	if err := c.getJSON(ctx, tokenURL, &tok); err != nil {
		return nil, fmt.Errorf("remote: download token for %s: %w", newest.Name, err)
	}

	body, err := c.getBytes(ctx, tok.Data.Token.URL)
	if err != nil {
		return nil, fmt.Errorf("remote: download %s: %w", newest.Name, err)
	}

	if c.filesDir != "" {
		local := filepath.Join(c.filesDir, serverID+suffix)
		if err := os.MkdirAll(c.filesDir, 0o755); err != nil {
			c.logger.Warn("failed to create files dir", zap.Error(err))
		} else if err := os.WriteFile(local, body, 0o644); err != nil {
			c.logger.Warn("failed to snapshot log file",
				zap.String("path", local), zap.Error(err))
		}
	}

	c.logger.Info("log file fetched",
		zap.String("server", serverID),
		zap.String("stream", string(stream)),
		zap.String("file", newest.Name),
		zap.Int("bytes", len(body)))
	return body, nil
}

// ---- ban list ----

// Banlist returns the server's current ban list entries.
func (c *Client) Banlist(ctx context.Context, serverID string) ([]string, error) {
	info, err := c.Info(ctx, serverID)
	if err != nil {
		return nil, err
	}
	raw := info.Data.Gameserver.Settings.General.Bans
	if raw == "" {
		return nil, nil
	}
	return strings.Split(raw, "\r\n"), nil
}

// AddBan appends a name to the server ban list. Returns false if the
// name is already listed.
func (c *Client) AddBan(ctx context.Context, serverID, name string) (bool, error) {
	bans, err := c.Banlist(ctx, serverID)
	if err != nil {
		return false, err
	}
	for _, b := range bans {
		if b == name {
			return false, nil
		}
	}
	value := strings.Join(append(bans, name), "\r\n")
	if err := c.postSetting(ctx, serverID, "general", "bans", value); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveBan removes a name from the server ban list. Returns false if
// the name was not listed.
func (c *Client) RemoveBan(ctx context.Context, serverID, name string) (bool, error) {
	bans, err := c.Banlist(ctx, serverID)
	if err != nil {
		return false, err
	}
	kept := make([]string, 0, len(bans))
	found := false
	for _, b := range bans {
		if b == name {
			found = true
			continue
		}
		kept = append(kept, b)
	}
	if !found {
		return false, nil
	}
	if err := c.postSetting(ctx, serverID, "general", "bans", strings.Join(kept, "\r\n")); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) postSetting(ctx context.Context, serverID, category, key, value string) error {
	form := url.Values{}
	form.Set("category", category)
	form.Set("key", key)
	form.Set("value", value)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/services/%s/gameservers/settings", c.baseURL, serverID),
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote: post setting %s.%s: status %d", category, key, resp.StatusCode)
	}
	return nil
}

// ---- HTTP helpers ----

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	body, err := c.getBytes(ctx, rawURL)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) getBytes(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote: GET %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
