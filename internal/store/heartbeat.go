package store

// Heartbeat is one row per executor client liveness ping (spec §3).
type Heartbeat struct {
	ClientID      string
	LastHeartbeat int64
}

// UpsertHeartbeat records a liveness ping.
func (d *DB) UpsertHeartbeat(clientID string, at int64) error {
	_, err := d.db.Exec(`INSERT OR REPLACE INTO heartbeats (client_id, last_heartbeat) VALUES (?, ?)`, clientID, at)
	return err
}

// AllHeartbeats lists every known client's last ping.
func (d *DB) AllHeartbeats() ([]*Heartbeat, error) {
	rows, err := d.db.Query(`SELECT client_id, last_heartbeat FROM heartbeats`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Heartbeat
	for rows.Next() {
		var h Heartbeat
		if err := rows.Scan(&h.ClientID, &h.LastHeartbeat); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}
