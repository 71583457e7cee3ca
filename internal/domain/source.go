package domain

// Source represents the upstream venue a listing was observed on.
type Source string

const (
	SourceRaydium Source = "raydium"
	SourcePump    Source = "pump"
)

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s Source) IsValid() bool {
	return s == SourceRaydium || s == SourcePump
}
