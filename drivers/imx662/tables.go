package imx662

// regval is one register table entry; width is the field size in bytes.
type regval struct {
	addr  uint16
	width uint8
	val   uint32
}

func r8(addr uint16, v uint32) regval  { return regval{addr, 1, v} }
func r16(addr uint16, v uint32) regval { return regval{addr, 2, v} }
func r24(addr uint16, v uint32) regval { return regval{addr, 3, v} }

// commonTable is written once per power cycle, before any mode table.
func commonTable(laneMode uint32) []regval {
	t := []regval{
		r8(regInckSel, 0x01),
		r8(regWDMode, 0x00),
		r8(regAddMode, 0x00),
		r8(regLaneMode, laneMode),
		r24(regSHR0, 4),
		r8(regXVSXHSDrv, 0x00),
		r16(regGain, 0),
		r8(0x3444, 0xAC),
		r8(0x3460, 0x21),
		r8(0x3492, 0x08),
		r8(0x3B00, 0x39),
		r8(0x3B23, 0x2D),
		r8(0x3B45, 0x04),
		r16(0x3C0A, 0x1E1F),
		r8(0x3C38, 0x21),
		r8(0x3C44, 0x00),
		r8(0x3CB6, 0xD8),
		r8(0x3CC4, 0xDA),
		r8(0x3E24, 0x79),
		r8(0x3E2C, 0x15),
		r8(0x3EDC, 0x2D),
		r8(0x4498, 0x05),
		r16(0x449C, 0x0019),
		r16(0x449E, 0x0132),
	}
	// Two identical eight-step ramps, one byte every other register.
	ramp := [...]uint32{0x92, 0x91, 0x8C, 0x87, 0x82, 0x78, 0x6E, 0x69}
	for _, base := range [...]uint16{0x44A0, 0x44B0} {
		for i, v := range ramp {
			t = append(t, r8(base+uint16(2*i), v))
		}
	}
	// Two identical tables of 16-bit words.
	words := [...]uint32{0x017F, 0x017F, 0x017A, 0x017A, 0x0170, 0x016B, 0x016B, 0x015C}
	for _, base := range [...]uint16{0x44C0, 0x44D0} {
		for i, v := range words {
			t = append(t, r16(base+uint16(2*i), v))
		}
	}
	t = append(t, r16(0x4534, 0x031C))
	for a := uint16(0x4538); a <= 0x4540; a++ {
		t = append(t, r8(a, 0x1C))
	}
	for a := uint16(0x4541); a <= 0x4549; a++ {
		t = append(t, r8(a, 0x03))
	}
	return t
}

// Bit-depth tables.
var (
	format10Table = []regval{
		r8(regADBit, 0), r8(regMDBit, 0),
		r8(0x3A50, 0x62), r8(0x3A51, 0x01), r8(0x3A52, 0x19),
	}
	format10ClearHDRTable = []regval{
		r8(regADBit, 0), r8(regMDBit, 0),
		r8(0x3A50, 0x56), r8(0x3A51, 0x02), r8(0x3A52, 0x19),
	}
	format12Table = []regval{
		r8(regADBit, 1), r8(regMDBit, 1),
		r8(0x3A50, 0xFF), r8(0x3A51, 0x03), r8(0x3A52, 0x00),
	}
)

// Mode tables.
var (
	allPixelTable = []regval{
		r8(regWinMode, 0), r8(regWDMode, 0), r8(regAddMode, 0),
		r8(0x3460, 0x21), r8(0x3C40, 0x06),
	}
	cropTable = []regval{
		r8(regWinMode, 4), r8(regWDMode, 0), r8(regAddMode, 0),
		r16(regPixHST, 320), r16(regPixHWidth, 1296),
		r16(regPixVST, 180), r16(regPixVWidth, 740),
		r8(0x3460, 0x21), r8(0x3C40, 0x06),
	}
	// Binning reads out at 12 bit on the AD side and 10 bit downstream;
	// the mode table carries its own bit-depth registers.
	binningTable = []regval{
		r8(regWinMode, 0), r8(regWDMode, 0), r8(regAddMode, 1),
		r8(regADBit, 0), r8(regMDBit, 1),
		r8(0x3A50, 0x62), r8(0x3A51, 0x01), r8(0x3A52, 0x19),
		r8(0x3460, 0x21), r8(0x3C40, 0x06),
	}
	binningCropTable = []regval{
		r8(regWinMode, 4), r8(regWDMode, 0), r8(regAddMode, 1),
		r8(regADBit, 0), r8(regMDBit, 1),
		r16(regPixHST, 320), r16(regPixHWidth, 1296),
		r16(regPixVST, 60), r16(regPixVWidth, 980),
		r8(0x3A50, 0x62), r8(0x3A51, 0x01), r8(0x3A52, 0x19),
		r8(0x3460, 0x21), r8(0x3C40, 0x06),
	}
	dolTable = []regval{
		r8(regWinMode, 0), r8(regWDMode, 1), r8(regAddMode, 0),
		r8(regThinVEn, 1), r8(regGainPGC, 0),
		r24(regSHR0, 0x03E8), r24(regSHR1, minSHR1), r24(regRHS1, 0x009D),
		r8(0x3460, 0x21), r8(0x3C40, 0x06),
	}
	clearHDRTable = []regval{
		r8(regWinMode, 0), r8(regWDMode, 8), r8(regAddMode, 0),
		r24(regVMAX, 0x09C4), r8(regFDGSel0, 2), r8(regExpGain, 2),
		r24(regSHR0, 8),
		r8(0x3460, 0x22), r8(0x3C40, 0x05),
	}
)

// Gradation compression and HDR combine settings.
func compressionTable(compressed bool) []regval {
	if !compressed {
		return []regval{r24(regCCMP1, 0), r8(regACMP1, 0), r24(regCCMP2, 0), r8(regACMP2, 0)}
	}
	return []regval{r24(regCCMP1, 500), r8(regACMP1, 2), r24(regCCMP2, 11500), r8(regACMP2, 6)}
}

var hdrCombineTable = []regval{
	r16(regExpThH, 4095), r16(regExpThL, 512), r8(regExpBK, 0),
}

// Test pattern generator.
var (
	tpgEnableTable = []regval{
		r8(regBlkLevel, 0), r8(regTPGEn, 1), r8(regTPGColorW, 0), r8(regTestClkEn, 0x0A),
	}
	tpgDisableTable = []regval{
		r8(regBlkLevel, 0x32), r8(regTPGEn, 0), r8(regTPGColorW, 0), r8(regTestClkEn, 0x02),
	}
)

// TestPatterns names the generator patterns; index 0 disables it.
var TestPatterns = []string{
	"No pattern",
	"000h Pattern",
	"3FF(FFFh) Pattern",
	"155(555h) Pattern",
	"2AA(AAAh) Pattern",
	"555/AAAh Pattern",
	"AAA/555h Pattern",
	"000/555h Pattern",
	"555/000h Pattern",
	"000/FFFh Pattern",
	"FFF/000h Pattern",
	"H Color-bar",
	"V Color-bar",
}
