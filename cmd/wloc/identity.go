package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wlocate/wlocate/internal/wloc"
)

// identityFile is the TOML layout of an identity override file.
type identityFile struct {
	Locale     string `toml:"locale"`
	Identifier string `toml:"identifier"`
	Version    string `toml:"version"`
	UserAgent  string `toml:"user_agent"`
}

// loadIdentity overlays the keys present in path onto base.
func loadIdentity(path string, base wloc.ClientIdentity) (wloc.ClientIdentity, error) {
	var raw identityFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return wloc.ClientIdentity{}, fmt.Errorf("load identity: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return wloc.ClientIdentity{}, fmt.Errorf("load identity: unknown key %q", undecoded[0].String())
	}

	identity := base
	if meta.IsDefined("locale") {
		identity.Locale = strings.TrimSpace(raw.Locale)
	}
	if meta.IsDefined("identifier") {
		identity.Identifier = strings.TrimSpace(raw.Identifier)
	}
	if meta.IsDefined("version") {
		identity.Version = strings.TrimSpace(raw.Version)
	}
	if meta.IsDefined("user_agent") {
		identity.UserAgent = strings.TrimSpace(raw.UserAgent)
	}

	if err := identity.Validate(); err != nil {
		return wloc.ClientIdentity{}, fmt.Errorf("load identity: %w", err)
	}
	return identity, nil
}
