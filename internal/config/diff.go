package config

import "reflect"

// Diff summarises what changed between two configs, section by section. The
// reload path uses it to decide what can be applied live (validation,
// ingest tuning, log level) and what needs a restart (everything else).
type Diff struct {
	LogLevelChanged   bool
	ServerChanged     bool
	ProvidersChanged  bool
	StorageChanged    bool
	IngestChanged     bool
	ValidationChanged bool
}

// Empty reports whether no section changed.
func (d Diff) Empty() bool {
	return d == Diff{}
}

// RequiresRestart reports whether any changed section cannot be applied to a
// running server.
func (d Diff) RequiresRestart() bool {
	return d.ServerChanged || d.ProvidersChanged || d.StorageChanged
}

// Compare computes the section-level Diff between old and updated.
func Compare(old, updated *Config) Diff {
	if old == nil || updated == nil {
		return Diff{}
	}

	var d Diff
	d.LogLevelChanged = old.Server.LogLevel != updated.Server.LogLevel

	// Listen address and TLS changes need a rebind; log level alone does not.
	oldServer, newServer := old.Server, updated.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	d.ServerChanged = !reflect.DeepEqual(oldServer, newServer)

	d.ProvidersChanged = !reflect.DeepEqual(old.Providers, updated.Providers)
	d.StorageChanged = old.Storage != updated.Storage
	d.IngestChanged = old.Ingest != updated.Ingest
	d.ValidationChanged = old.Validation != updated.Validation
	return d
}
