// Package paths resolves the on-disk locations of iMessage data for both
// supported platforms: a live macOS install and an unencrypted iOS backup.
package paths

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Platform identifies the source of the store.
type Platform int

const (
	MacOS Platform = iota
	IOS
)

func (p Platform) String() string {
	if p == IOS {
		return "iOS"
	}
	return "macOS"
}

// ParsePlatform reads a CLI platform value, case-insensitively.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(s) {
	case "", "macos":
		return MacOS, nil
	case "ios":
		return IOS, nil
	}
	return MacOS, fmt.Errorf("unknown platform %q", s)
}

// Home returns the current user's home directory.
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// MessagesRoot returns ~/Library/Messages, the default root for the macOS
// store and its attachments.
func MessagesRoot() string {
	return filepath.Join(Home(), "Library", "Messages")
}

// DefaultDBPath returns the chat.db location for a platform rooted at the
// given path. An empty root means the macOS default.
func DefaultDBPath(platform Platform, root string) string {
	switch platform {
	case IOS:
		return BackupRecordPath(root, "HomeDomain", "Library/SMS/sms.db")
	default:
		if root == "" {
			root = MessagesRoot()
		}
		return filepath.Join(root, "chat.db")
	}
}

// DetectPlatform inspects a path: a directory holding a backup manifest is
// an iOS backup, anything else is treated as macOS data.
func DetectPlatform(path string) Platform {
	for _, manifest := range []string{"Manifest.db", "Manifest.mbdb"} {
		if _, err := os.Stat(filepath.Join(path, manifest)); err == nil {
			return IOS
		}
	}
	return MacOS
}

// BackupRecordPath locates a file inside an unencrypted device backup.
// Backups store each file under the SHA-1 of "<domain>-<relative path>",
// sharded by the digest's first two hex characters.
func BackupRecordPath(root, domain, relPath string) string {
	sum := sha1.Sum([]byte(domain + "-" + relPath))
	digest := hex.EncodeToString(sum[:])
	return filepath.Join(root, digest[:2], digest)
}

// ResolveAttachment maps an attachment table filename to an absolute path.
// Tilde prefixes expand against the configured attachment root (macOS) or
// the library path inside the backup (iOS).
func ResolveAttachment(platform Platform, root, filename string) string {
	switch platform {
	case IOS:
		rel := strings.TrimPrefix(filename, "~/Library/")
		rel = strings.TrimPrefix(rel, "/var/mobile/Library/")
		return BackupRecordPath(root, "MediaDomain", "Library/"+rel)
	default:
		if strings.HasPrefix(filename, "~/") {
			base := root
			if base == "" {
				base = Home()
			}
			return filepath.Join(base, filename[2:])
		}
		return filename
	}
}
