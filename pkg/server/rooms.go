package server

// JoinRoom adds room to username's room set.
func (r *Registry) JoinRoom(username, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.rooms[username]
	if !ok {
		return ErrNotRegistered
	}
	if _, in := rooms[room]; in {
		return ErrAlreadyInRoom
	}
	rooms[room] = struct{}{}
	return nil
}

// LeaveRoom removes room from username's room set.
func (r *Registry) LeaveRoom(username, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.rooms[username]
	if !ok {
		return ErrNotRegistered
	}
	if _, in := rooms[room]; !in {
		return ErrNotInRoom
	}
	delete(rooms, room)
	return nil
}

// RoomsOf returns the rooms username belongs to, sorted.
func (r *Registry) RoomsOf(username string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.rooms[username])
}

// ClearRooms empties username's room set and returns what it held. Two
// concurrent callers never both see the same rooms.
func (r *Registry) ClearRooms(username string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms, ok := r.rooms[username]
	if !ok {
		return nil
	}
	result := sortedKeys(rooms)
	r.rooms[username] = make(map[string]struct{})
	return result
}
