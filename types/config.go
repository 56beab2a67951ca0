package types

// Camera configuration supplied on topic "config/camera".

type CameraConfig struct {
	Devices []CameraDevice `json:"devices"`
}

type CameraDevice struct {
	Name string `json:"name"`           // topic token, e.g. "front"
	Type string `json:"type"`           // builder key, e.g. "imx662"
	Bus  string `json:"bus"`            // "i2c0", ...
	Addr uint16 `json:"addr,omitempty"` // 0 => sensor default

	Lanes        uint32 `json:"lanes,omitempty"`          // 0 => 4
	DataRateMbps uint32 `json:"data_rate_mbps,omitempty"` // 0 => 594
	Mono         bool   `json:"mono,omitempty"`

	HCG          bool   `json:"hcg,omitempty"`
	VerifyChipID bool   `json:"verify_chip_id,omitempty"`
	Sync         string `json:"sync,omitempty"`      // "none", "internal" (default), "external"
	Operation    string `json:"operation,omitempty"` // "master" (default), "slave"

	// ResetPin drives the sensor XCLR line; negative or absent means none.
	ResetPin *int `json:"reset_pin,omitempty"`

	// Controls are applied by name once the device is built.
	Controls map[string]int64 `json:"controls,omitempty"`
	// Stream starts the sensor right after configuration.
	Stream bool `json:"stream,omitempty"`
}
