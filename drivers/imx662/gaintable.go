package imx662

// gainTimes maps a gain register code (0.3 dB steps) to linear gain with
// 1024 = 0 dB. Strictly increasing.
var gainTimes = [MaxGainCode + 1]uint32{
	1024, 1060, 1097, 1136, 1176, 1217, 1260, 1304, 1350, 1397,
	1446, 1497, 1550, 1604, 1661, 1719, 1780, 1842, 1907, 1974,
	2043, 2115, 2189, 2266, 2346, 2428, 2514, 2602, 2693, 2788,
	2886, 2987, 3092, 3201, 3314, 3430, 3551, 3675, 3805, 3938,
	4077, 4220, 4368, 4522, 4681, 4845, 5015, 5192, 5374, 5563,
	5758, 5961, 6170, 6387, 6611, 6844, 7084, 7333, 7591, 7858,
	8134, 8420, 8716, 9022, 9339, 9667, 10007, 10359, 10723, 11099,
	11489, 11893, 12311, 12744, 13192, 13655, 14135, 14632, 15146, 15678,
	16229, 16800, 17390, 18001, 18634, 19289, 19966, 20668, 21394, 22146,
	22925, 23730, 24564, 25427, 26321, 27246, 28203, 29194, 30220, 31282,
	32382, 33520, 34698, 35917, 37179, 38486, 39838, 41238, 42687, 44188,
	45740, 47348, 49012, 50734, 52517, 54363, 56273, 58251, 60298, 62417,
	64610, 66881, 69231, 71664, 74182, 76789, 79488, 82281, 85173, 88166,
	91264, 94471, 97791, 101228, 104785, 108468, 112279, 116225, 120310, 124537,
	128914, 133444, 138134, 142988, 148013, 153215, 158599, 164172, 169942, 175914,
	182096, 188495, 195119, 201976, 209074, 216421, 224027, 231900, 240049, 248485,
	257217, 266256, 275613, 285299, 295325, 305703, 316446, 327567, 339078, 350994,
	363329, 376097, 389314, 402995, 417157, 431817, 446992, 462700, 478961, 495793,
	513216, 531251, 549921, 569246, 589250, 609958, 631393, 653582, 676550, 700326,
	724936, 750412, 776783, 804081, 832338, 861589, 891867, 923209, 955652, 989236,
	1024000, 1059986, 1097236, 1135795, 1175709, 1217026, 1259795, 1304067, 1349895, 1397333,
	1446438, 1497269, 1549887, 1604353, 1660734, 1719095, 1779508, 1842044, 1906777, 1973786,
	2043149, 2114949, 2189273, 2266209, 2345848, 2428287, 2513622, 2601956, 2693394, 2788046,
	2886024, 2987445, 3092431, 3201105, 3313599, 3430046, 3550585, 3675361, 3804521, 3938220,
	4076617,
}

// GainTimes returns the linear gain (1024 = unity) for a register code.
func GainTimes(code uint32) uint32 {
	if code > MaxGainCode {
		code = MaxGainCode
	}
	return gainTimes[code]
}

// lookupGainCode returns the code whose table value is closest to g.
// clamped reports that g fell outside the table.
func lookupGainCode(g uint32) (code uint32, clamped bool) {
	switch {
	case g < gainTimes[0]:
		return 0, true
	case g > gainTimes[MaxGainCode]:
		return MaxGainCode, true
	}
	lo, hi := 0, MaxGainCode
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if gainTimes[mid] > g {
			hi = mid
		} else {
			lo = mid
		}
	}
	if g-gainTimes[lo] < gainTimes[hi]-g {
		return uint32(lo), false
	}
	return uint32(hi), false
}

// Exponential gain (clear HDR) steps, in gain-times.
var expGainBounds = [...]uint32{1534, 3060, 6106, 12182, 24306}

const maxExpGain = uint32(len(expGainBounds))

// expGainCode returns how many bounds g reaches or passes.
func expGainCode(g uint32) uint32 {
	var n uint32
	for _, b := range expGainBounds {
		if g < b {
			break
		}
		n++
	}
	return n
}
