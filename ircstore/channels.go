// Package ircstore persists the channel set a client should join, so a bot
// returns to its channels after a restart.
package ircstore

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ChannelStore is a sqlite-backed set of channel names.
type ChannelStore struct {
	db *sql.DB
}

// OpenChannelStore opens (creating if necessary) the channel store at path.
func OpenChannelStore(path string) (*ChannelStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open channel store: %w", err)
	}
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS channels (name TEXT PRIMARY KEY)"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create channels table: %w", err)
	}
	return &ChannelStore{db: db}, nil
}

func (s *ChannelStore) Close() error {
	return s.db.Close()
}

// Add records a channel. Adding a channel twice is not an error.
func (s *ChannelStore) Add(channel string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO channels (name) VALUES (?)", fold(channel))
	return err
}

// Remove forgets a channel.
func (s *ChannelStore) Remove(channel string) error {
	_, err := s.db.Exec("DELETE FROM channels WHERE name = ?", fold(channel))
	return err
}

// List returns the stored channels in sorted order.
func (s *ChannelStore) List() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM channels ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		channels = append(channels, name)
	}
	return channels, rows.Err()
}

func fold(channel string) string { return strings.ToLower(channel) }
