// Package imx662 is the register-level control core for the Sony IMX662
// CMOS image sensor. It turns capture intent (mode, frame rate, exposure,
// gain, HDR, flips, test pattern, sync) into ordered register writes over a
// tinygo drivers.I2C bus and runs the power/mode/streaming lifecycle.
//
// All multi-byte registers are little-endian and written address-ascending.
// Writes that must land in the same frame go through a register hold.
package imx662

// 7-bit I2C address.
const Address = 0x1A

// Reference clock and fixed-point factors.
const (
	InckHz = 74_250_000

	nsPerSec = 1_000_000_000
	q10      = 1 << 10
)

// Register addresses (16-bit sub-addresses).
const (
	regStandby    = 0x3000 // 0 = operating, 1 = standby
	regHold       = 0x3001
	regXMSTA      = 0x3002 // 0 = master start
	regInckSel    = 0x3014
	regDataRate   = 0x3015
	regWinMode    = 0x3018
	regWDMode     = 0x301A
	regAddMode    = 0x301B
	regThinVEn    = 0x301C
	regHReverse   = 0x3020
	regVReverse   = 0x3021
	regADBit      = 0x3022
	regMDBit      = 0x3023
	regVMAX       = 0x3028 // 3 bytes, 20 bits
	regHMAX       = 0x302C // 2 bytes
	regFDGSel0    = 0x3030
	regPixHST     = 0x303C
	regPixHWidth  = 0x303E
	regLaneMode   = 0x3040
	regPixVST     = 0x3044
	regPixVWidth  = 0x3046
	regSHR0       = 0x3050 // 3 bytes
	regSHR1       = 0x3054 // 3 bytes
	regRHS1       = 0x3060 // 3 bytes
	regGain       = 0x3070 // 2 bytes
	regGain1      = 0x3072 // 2 bytes
	regExpGain    = 0x3081
	regXVSXHSDrv  = 0x30A6
	regExtMode    = 0x30CE
	regBlkLevel   = 0x30DC // 2 bytes
	regTPGEn      = 0x30E0
	regTPGPatSel  = 0x30E2
	regTPGColorW  = 0x30E4
	regGainPGC    = 0x3400
	regDigClamp   = 0x3458
	regExpThH     = 0x36D0 // 2 bytes
	regExpThL     = 0x36D4 // 2 bytes
	regExpBK      = 0x36E2
	regCCMP2      = 0x36E4 // 3 bytes
	regACMP2      = 0x36EC
	regACMP1      = 0x36EE
	regCCMP1      = 0x36E8 // 3 bytes
	regTestClkEn  = 0x4900
	regChipID     = 0x30DC // reads back the chip id before the black level is programmed
	chipIDValue   = 0x32
	maxVMAX       = 0xFFFFF
	maxHMAX       = 0xFFFF
	holdAsserted  = 1
	holdReleased  = 0
	standbyOn     = 1
	standbyOff    = 0
	masterStart   = 0
	masterStop    = 1
	pinsHiZ       = 0xF
	pinsBothDrive = 0x0
	pinsXVSDrive  = 0x3
)

// Lane mode register values.
const (
	laneMode2 = 1
	laneMode4 = 3
)
