package models

// PinRecord is the stored authentication material: hex SHA-256 of
// salt||pin and the hex salt itself.
type PinRecord struct {
	Hash string
	Salt string
}

// Legacy reports whether the record predates salted hashes.
func (p PinRecord) Legacy() bool {
	return p.Hash != "" && p.Salt == ""
}
