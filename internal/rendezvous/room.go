package rendezvous

// Room is a pairing slot identified by a 6-character room code. It holds
// at most two occupants: the client that created it, and the client that
// joined it. A room with zero occupants is deleted, never observed.
type Room struct {
	ID       string
	Creator  *Client
	Joiner   *Client
}

// Members returns the occupants of the room, omitting any nil slot.
func (r *Room) Members() []*Client {
	members := make([]*Client, 0, 2)
	if r.Creator != nil {
		members = append(members, r.Creator)
	}
	if r.Joiner != nil {
		members = append(members, r.Joiner)
	}
	return members
}

// Peer returns the other occupant of the room relative to client, or nil
// if client is currently the sole occupant.
func (r *Room) Peer(client *Client) *Client {
	switch {
	case r.Creator == client:
		return r.Joiner
	case r.Joiner == client:
		return r.Creator
	default:
		return nil
	}
}

// Remove clears client's slot in the room and reports whether the room is
// now empty.
func (r *Room) Remove(client *Client) (empty bool) {
	switch {
	case r.Creator == client:
		r.Creator = nil
	case r.Joiner == client:
		r.Joiner = nil
	}
	return r.Creator == nil && r.Joiner == nil
}
