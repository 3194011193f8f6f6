package pkguid

// StringID generates unique string identifiers. Task ids and correlation ids
// are both drawn from a StringID.
type StringID interface {
	Generate() string
}

// NumberID generates unique int64 identifiers.
type NumberID interface {
	Generate() int64
}

var (
	_ StringID = (*UUID)(nil)
	_ StringID = (*SnowflakeString)(nil)
	_ NumberID = (*Snowflake)(nil)
)
