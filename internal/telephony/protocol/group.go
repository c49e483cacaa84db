package protocol

import "sort"

// Group tracks the membership sets and capability flags of one channel.
// Apply reduces a requested change to the part that actually moves a
// handle, so callers can emit only real transitions.
type Group struct {
	members       map[Handle]struct{}
	localPending  map[Handle]struct{}
	remotePending map[Handle]struct{}
	flags         GroupFlags
}

// NewGroup returns an empty group with the given initial flags.
func NewGroup(flags GroupFlags) *Group {
	return &Group{
		members:       make(map[Handle]struct{}),
		localPending:  make(map[Handle]struct{}),
		remotePending: make(map[Handle]struct{}),
		flags:         flags,
	}
}

// Apply applies c and returns the effective change. The boolean result is
// false when nothing moved.
func (g *Group) Apply(c MembersChange) (MembersChange, bool) {
	out := c
	out.Added, out.Removed, out.LocalPending, out.RemotePending = nil, nil, nil, nil

	for _, h := range c.Added {
		if _, ok := g.members[h]; ok {
			continue
		}
		delete(g.localPending, h)
		delete(g.remotePending, h)
		g.members[h] = struct{}{}
		out.Added = append(out.Added, h)
	}
	for _, h := range c.LocalPending {
		if _, ok := g.localPending[h]; ok {
			continue
		}
		delete(g.members, h)
		delete(g.remotePending, h)
		g.localPending[h] = struct{}{}
		out.LocalPending = append(out.LocalPending, h)
	}
	for _, h := range c.RemotePending {
		if _, ok := g.remotePending[h]; ok {
			continue
		}
		delete(g.members, h)
		delete(g.localPending, h)
		g.remotePending[h] = struct{}{}
		out.RemotePending = append(out.RemotePending, h)
	}
	for _, h := range c.Removed {
		_, m := g.members[h]
		_, l := g.localPending[h]
		_, r := g.remotePending[h]
		if !m && !l && !r {
			continue
		}
		delete(g.members, h)
		delete(g.localPending, h)
		delete(g.remotePending, h)
		out.Removed = append(out.Removed, h)
	}

	return out, !out.Empty()
}

// ChangeFlags sets add and clears remove, returning the bits that really changed.
func (g *Group) ChangeFlags(add, remove GroupFlags) (added, removed GroupFlags) {
	added = add &^ g.flags
	removed = remove & g.flags &^ add
	g.flags = (g.flags | add) &^ removed
	return added, removed
}

// Flags returns the current capability flags.
func (g *Group) Flags() GroupFlags { return g.flags }

func (g *Group) IsMember(h Handle) bool {
	_, ok := g.members[h]
	return ok
}

func (g *Group) IsLocalPending(h Handle) bool {
	_, ok := g.localPending[h]
	return ok
}

func (g *Group) IsRemotePending(h Handle) bool {
	_, ok := g.remotePending[h]
	return ok
}

// HasPending reports whether anybody is local or remote pending.
func (g *Group) HasPending() bool {
	return len(g.localPending) > 0 || len(g.remotePending) > 0
}

// HasRemotePending reports whether anybody is remote pending.
func (g *Group) HasRemotePending() bool {
	return len(g.remotePending) > 0
}

// Contains reports whether h is a member or pending member.
func (g *Group) Contains(h Handle) bool {
	return g.IsMember(h) || g.IsLocalPending(h) || g.IsRemotePending(h)
}

func (g *Group) Members() []Handle       { return sorted(g.members) }
func (g *Group) LocalPending() []Handle  { return sorted(g.localPending) }
func (g *Group) RemotePending() []Handle { return sorted(g.remotePending) }

func sorted(set map[Handle]struct{}) []Handle {
	out := make([]Handle, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
