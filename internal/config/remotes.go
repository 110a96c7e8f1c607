package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// Remotes holds all named CLI remotes and tracks which one is active.
type Remotes struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// Remote is a named server profile.
type Remote struct {
	URL      string `toml:"url"`                 // HTTP base URL
	GRPCAddr string `toml:"grpc_addr,omitempty"` // host:port for --transport grpc
	Token    string `toml:"token,omitempty"`
	NATSURL  string `toml:"nats_url,omitempty"`
}

// ErrUnknownRemote is returned when a named remote does not exist.
var ErrUnknownRemote = errors.New("unknown remote")

// DefaultRemotesPath returns ~/.local/state/commentfeed/remotes.toml.
func DefaultRemotesPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "commentfeed", "remotes.toml"), nil
}

// LoadRemotes reads the remotes file at path. A missing file yields an
// empty configuration.
func LoadRemotes(path string) (*Remotes, error) {
	cfg := &Remotes{}
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = map[string]Remote{}
	}
	return cfg, nil
}

// Save writes the remotes file, creating its directory. The file holds
// tokens, so it is made private to the user even if it already existed
// with a wider mode.
func (r *Remotes) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return fmt.Errorf("restricting %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(r); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Add creates or replaces a remote. The first remote added becomes active.
func (r *Remotes) Add(name string, remote Remote) error {
	if name == "" {
		return fmt.Errorf("remote name is required")
	}
	if remote.URL == "" && remote.GRPCAddr == "" {
		return fmt.Errorf("remote %q needs a url or grpc address", name)
	}
	r.Remotes[name] = remote
	if r.Active == "" {
		r.Active = name
	}
	return nil
}

// Use makes name the active remote.
func (r *Remotes) Use(name string) error {
	if _, ok := r.Remotes[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRemote, name)
	}
	r.Active = name
	return nil
}

// Remove deletes a remote, clearing the active selection if it pointed there.
func (r *Remotes) Remove(name string) error {
	if _, ok := r.Remotes[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRemote, name)
	}
	delete(r.Remotes, name)
	if r.Active == name {
		r.Active = ""
	}
	return nil
}

// Names returns the remote names in sorted order.
func (r *Remotes) Names() []string {
	names := make([]string, 0, len(r.Remotes))
	for name := range r.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveRemote returns the active remote, if any.
func (r *Remotes) ActiveRemote() (Remote, bool) {
	if r.Active == "" {
		return Remote{}, false
	}
	remote, ok := r.Remotes[r.Active]
	return remote, ok
}
