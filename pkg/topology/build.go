package topology

import (
	"fmt"
	"strings"
)

// iconByType maps a lowercased device type to its icon reference.
var iconByType = map[string]string{
	DeviceRouter:   "/icons/router.svg",
	DeviceFirewall: "/icons/firewall.svg",
	DeviceSwitch:   "/icons/switch.svg",
	DeviceServer:   "/icons/server.svg",
	DeviceClient:   "/icons/client.svg",
}

const iconUnknown = "/icons/unknown.svg"

// Icon returns the icon reference for a device type. Matching is
// case-insensitive; unrecognized types get the unknown icon.
func Icon(deviceType string) string {
	if icon, ok := iconByType[strings.ToLower(deviceType)]; ok {
		return icon
	}
	return iconUnknown
}

// IsInfrastructure reports whether the device type is part of the network
// backbone (router, firewall or switch). Infrastructure devices are excluded
// from subnet grouping. Matching is case-insensitive.
func IsInfrastructure(deviceType string) bool {
	switch strings.ToLower(deviceType) {
	case DeviceRouter, DeviceFirewall, DeviceSwitch:
		return true
	}
	return false
}

// SubnetKey returns the first three dot-separated octets of an IP address.
// A malformed or missing address yields FallbackSubnet so that bad rows
// degrade into a catch-all group instead of failing the build.
func SubnetKey(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) < 3 {
		return FallbackSubnet
	}
	for _, p := range parts[:3] {
		if p == "" {
			return FallbackSubnet
		}
	}
	return strings.Join(parts[:3], ".")
}

// GroupKey returns the display key for a subnet group.
func GroupKey(subnet string) string {
	return fmt.Sprintf("Subnet %s.0/24", subnet)
}

// Build derives the node/link/group graph from a record set.
//
// Build is pure and deterministic: node order equals input order, and group
// order follows subnet discovery order. Each node flattens the record's
// Device and NetworkInfo fields; on custom field collisions the NetworkInfo
// side wins, matching the merge precedence of the imported data model.
//
// A link is emitted for every record with a non-empty gateway. The target is
// the hostname of the device whose IP address equals the gateway, or the
// UnknownGateway sentinel when no device matches; unresolved gateways are a
// best-effort fallback, never an error. Only non-infrastructure devices are
// grouped by subnet.
func Build(records []Record) Graph {
	g := Graph{
		Nodes: make([]Node, 0, len(records)),
	}

	// Index IP → hostname for gateway resolution. First record wins on
	// duplicate addresses, matching input order determinism.
	byIP := make(map[string]string, len(records))
	for _, r := range records {
		if r.Device.IPAddress == "" {
			continue
		}
		if _, ok := byIP[r.Device.IPAddress]; !ok {
			byIP[r.Device.IPAddress] = r.Device.Hostname
		}
	}

	members := make(map[string][]string)
	var subnetOrder []string

	for _, r := range records {
		g.Nodes = append(g.Nodes, flatten(r))

		if !IsInfrastructure(r.Device.DeviceType) {
			subnet := SubnetKey(r.Device.IPAddress)
			if _, seen := members[subnet]; !seen {
				subnetOrder = append(subnetOrder, subnet)
			}
			members[subnet] = append(members[subnet], r.Device.Hostname)
		}

		if gw := r.Network.Gateway; gw != "" {
			to, ok := byIP[gw]
			if !ok {
				to = UnknownGateway
			}
			g.Links = append(g.Links, Link{From: r.Device.Hostname, To: to})
		}
	}

	for _, subnet := range subnetOrder {
		g.Groups = append(g.Groups, Group{
			Key:        GroupKey(subnet),
			Subnet:     subnet,
			MemberKeys: members[subnet],
		})
	}

	return g
}

// flatten merges one record into a node. NetworkInfo custom fields win over
// Device custom fields on key collision.
func flatten(r Record) Node {
	return Node{
		Key:        r.Device.Hostname,
		Hostname:   r.Device.Hostname,
		IPAddress:  r.Device.IPAddress,
		SubnetMask: r.Device.SubnetMask,
		DeviceType: r.Device.DeviceType,
		OSVersion:  r.Device.OSVersion,
		MACAddress: r.Device.MACAddress,
		Gateway:    r.Network.Gateway,
		DNSServers: r.Network.DNSServers,
		Domain:     r.Network.Domain,
		Icon:       Icon(r.Device.DeviceType),
		Custom:     r.Device.Custom.merge(r.Network.Custom),
	}
}
