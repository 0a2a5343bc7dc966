// pkg/capability/schema.go
package capability

// ChannelRegistry is the static catalog of delivery channels this service
// ships with. It is loadable from a JSON file so deployments can trim or
// re-describe channels without a rebuild.
type ChannelRegistry struct {
	Version     string       `json:"version"`
	LastUpdated string       `json:"lastUpdated"`
	Channels    []Capability `json:"channels"`
}

type Capability struct {
	Channel             string   `json:"channel"`
	DisplayName         string   `json:"displayName"`
	Description         string   `json:"description"`
	Transport           string   `json:"transport"`
	SupportsReadReceipt bool     `json:"supportsReadReceipt"`
	SupportsRealtime    bool     `json:"supportsRealtime"`
	Timeout             string   `json:"timeout"`
	Retries             int      `json:"retries"`
	Tags                []string `json:"tags"`
}
