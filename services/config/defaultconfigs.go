package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (the value placed in ctx under CtxDeviceKey)
// Val: raw JSON, one top-level key per service
// -----------------------------------------------------------------------------

const cfgPico = `{
  "camera": {
    "devices": [
      {"name": "cam0", "type": "imx662", "bus": "i2c0", "lanes": 4,
       "data_rate_mbps": 594, "verify_chip_id": true, "reset_pin": 6}
    ]
  },
  "bridge": {
    "transport": {"type": "uart", "uart": {"port": 0, "baud": 115200, "tx_pin": 0, "rx_pin": 1}}
  },
  "heartbeat": {
    "interval_ms": 2000
  }
}`

const cfgSim = `{
  "camera": {
    "devices": [
      {"name": "cam0", "type": "imx662", "bus": "i2c0", "verify_chip_id": true,
       "reset_pin": 6, "controls": {"gain": 30}},
      {"name": "cam1", "type": "imx662", "bus": "i2c1", "lanes": 2, "mono": true,
       "operation": "slave", "sync": "external"}
    ]
  },
  "bridge": {
    "transport": {"type": "mqtt", "mqtt": {"broker": "tcp://127.0.0.1:1883", "prefix": "imx662"}}
  },
  "heartbeat": {
    "interval_ms": 1000
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"sim":  []byte(cfgSim),
}
