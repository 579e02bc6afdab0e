// Package topology defines the network-topology data model and the builder
// that turns flat device records into a renderable node/link/group graph.
//
// The model mirrors the shape of imported tabular data: each row becomes a
// Record pairing a Device identity with its NetworkInfo. Records are grouped
// into named, versioned Configurations by the store layer. The Build function
// derives the visual Graph from a record set; the graph is never persisted
// directly and is rebuilt from scratch whenever the record set changes.
package topology

import "time"

// Device types recognized by the icon lookup and the layout engine.
// Matching is case-insensitive; anything else is treated as unknown.
const (
	DeviceRouter   = "router"
	DeviceFirewall = "firewall"
	DeviceSwitch   = "switch"
	DeviceServer   = "server"
	DeviceClient   = "client"
	DeviceUnknown  = "unknown"
)

// UnknownGateway is the sentinel link target used when a record's gateway
// does not match any device's IP address. Unresolved gateways link to this
// placeholder rather than being dropped.
const UnknownGateway = "Unknown Gateway"

// FallbackSubnet is the subnet key assigned to records with a missing or
// malformed IP address. Malformed input never aborts a build.
const FallbackSubnet = "0.0.0"

// Fields is an open bag of custom attributes carried alongside the fixed
// Device and NetworkInfo fields. Values are multi-valued in the manner of
// http.Header: a scalar field is a single-element list.
type Fields map[string][]string

// Get returns the first value for the named field, or "" if absent.
func (f Fields) Get(key string) string {
	if len(f[key]) == 0 {
		return ""
	}
	return f[key][0]
}

// Clone returns a deep copy of the field bag. Returns nil for a nil bag.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		vals := make([]string, len(v))
		copy(vals, v)
		out[k] = vals
	}
	return out
}

// merge copies all entries of other into a copy of f, with other winning on
// key collision. Either side may be nil.
func (f Fields) merge(other Fields) Fields {
	if f == nil && other == nil {
		return nil
	}
	out := make(Fields, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Device is the identity record for one piece of equipment.
// Hostname is the unique key within a configuration.
type Device struct {
	Hostname   string `json:"hostname" bson:"hostname"`
	IPAddress  string `json:"ip_address" bson:"ip_address"`
	SubnetMask string `json:"subnet_mask,omitempty" bson:"subnet_mask,omitempty"`
	DeviceType string `json:"device_type,omitempty" bson:"device_type,omitempty"`
	OSVersion  string `json:"os_version,omitempty" bson:"os_version,omitempty"`
	MACAddress string `json:"mac_address,omitempty" bson:"mac_address,omitempty"`
	Custom     Fields `json:"custom,omitempty" bson:"custom,omitempty"`
}

// NetworkInfo describes the network context of a device.
type NetworkInfo struct {
	Gateway    string   `json:"gateway,omitempty" bson:"gateway,omitempty"`
	DNSServers []string `json:"dns_servers,omitempty" bson:"dns_servers,omitempty"`
	Domain     string   `json:"domain,omitempty" bson:"domain,omitempty"`
	Custom     Fields   `json:"custom,omitempty" bson:"custom,omitempty"`
}

// Record pairs a device with its network info; one imported row.
type Record struct {
	Device  Device      `json:"device" bson:"device"`
	Network NetworkInfo `json:"network" bson:"network"`
}

// Configuration is one named, versioned snapshot of a full record set.
// VersionNumber increases strictly by 1 per successful update; it is never
// reused and never decreases.
type Configuration struct {
	ID            string    `json:"id" bson:"_id"`
	Name          string    `json:"name" bson:"name"`
	VersionNumber int       `json:"versionNumber" bson:"version_number"`
	Records       []Record  `json:"data" bson:"records"`
	CreatedAt     time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updated_at"`
}

// Node is one renderable vertex, derived from a Record by flattening the
// Device and NetworkInfo fields. Key equals the device hostname and is unique
// within a graph.
type Node struct {
	Key        string   `json:"key"`
	Hostname   string   `json:"hostname"`
	IPAddress  string   `json:"ip_address"`
	SubnetMask string   `json:"subnet_mask,omitempty"`
	DeviceType string   `json:"device_type,omitempty"`
	OSVersion  string   `json:"os_version,omitempty"`
	MACAddress string   `json:"mac_address,omitempty"`
	Gateway    string   `json:"gateway,omitempty"`
	DNSServers []string `json:"dns_servers,omitempty"`
	Domain     string   `json:"domain,omitempty"`
	Icon       string   `json:"icon"`
	Custom     Fields   `json:"custom,omitempty"`
}

// Link is a directed edge from a node to the node resolved as its gateway,
// or to the UnknownGateway sentinel when resolution fails.
type Link struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Group collects the non-infrastructure devices of one /24 subnet.
// Routers, firewalls and switches are never grouped; they form the backbone.
type Group struct {
	Key        string   `json:"key"`
	Subnet     string   `json:"subnet"`
	MemberKeys []string `json:"memberKeys"`
}

// Graph is the derived node/link/group structure consumed by the layout
// engine and the rendering surface.
type Graph struct {
	Nodes  []Node  `json:"nodes"`
	Links  []Link  `json:"links"`
	Groups []Group `json:"groups"`
}

// Position is a 2D layout coordinate assigned to a node key.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
