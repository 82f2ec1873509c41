package topology

import (
	"fmt"

	"inet.af/netaddr"
)

// Derived addressing scheme for point-to-point data links.
//
// A link between node index i and node index j (i < j) gets the /24 subnet
// 192.<i>.<j>.0, and each endpoint the host address 192.<i>.<j>.<10+index>.
// The scheme is a pure function of the two indices, so re-loading the same
// spec always yields identical addressing.
const (
	linkSubnetBits = 24
	linkHostBase   = 10
	maxNodeIndex   = 200 // keeps 10+index a valid host octet with headroom
	dataLinkOctet0 = 192
	linkBroadcast  = 255
)

// deriveLink computes the subnet and endpoint addresses for a link between
// two nodes. The returned link's A side is the lower-indexed node.
func deriveLink(a, z *Node) (*Link, error) {
	if a.Index == z.Index {
		return nil, fmt.Errorf("nodes %s and %s share index %d", a.ID, z.ID, a.Index)
	}
	lo, hi := a, z
	if lo.Index > hi.Index {
		lo, hi = hi, lo
	}

	subnet := netaddr.IPPrefix{
		IP:   netaddr.IPv4(dataLinkOctet0, uint8(lo.Index), uint8(hi.Index), 0),
		Bits: linkSubnetBits,
	}

	loAddr, err := linkAddr(lo, hi)
	if err != nil {
		return nil, err
	}
	hiAddr, err := linkAddr(hi, lo)
	if err != nil {
		return nil, err
	}

	return &Link{
		A:      Endpoint{Node: lo.ID, Addr: loAddr},
		Z:      Endpoint{Node: hi.ID, Addr: hiAddr},
		Subnet: subnet,
	}, nil
}

// linkAddr returns the address of self on the link self<->peer.
func linkAddr(self, peer *Node) (netaddr.IPPrefix, error) {
	host := linkHostBase + self.Index
	if host >= linkBroadcast {
		return netaddr.IPPrefix{}, fmt.Errorf("node %s: index %d exceeds derivable host range", self.ID, self.Index)
	}
	lo, hi := self.Index, peer.Index
	if lo > hi {
		lo, hi = hi, lo
	}
	ip := netaddr.IPv4(dataLinkOctet0, uint8(lo), uint8(hi), uint8(host))
	return netaddr.IPPrefix{IP: ip, Bits: linkSubnetBits}, nil
}
