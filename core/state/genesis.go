package state

var genesisMarkerKey = []byte("genesis/applied")

// GenesisApplied reports whether genesis state has been committed.
func (m *Manager) GenesisApplied() (bool, error) {
	return m.KVGet(genesisMarkerKey, nil)
}

// MarkGenesis records the genesis timestamp so genesis is applied once.
func (m *Manager) MarkGenesis(timestamp uint64) error {
	return m.KVPut(genesisMarkerKey, timestamp)
}
