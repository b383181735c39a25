package domain

const (
	DeviceTypeMobile  = "mobile"
	DeviceTypeTablet  = "tablet"
	DeviceTypeDesktop = "desktop"

	Unknown = "Unknown"
)

// DeviceLabel is a coarse, advisory description of the client that opened a
// session. It is display data only and never used to recognise a device.
type DeviceLabel struct {
	Browser         string `gorm:"type:text;not null" db:"browser" json:"browser"`
	OperatingSystem string `gorm:"type:text;not null" db:"operating_system" json:"operatingSystem"`
	DeviceType      string `gorm:"type:text;not null" db:"device_type" json:"deviceType"`
}
