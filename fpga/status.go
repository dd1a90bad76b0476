package fpga

// BSEError is the 3- or 4-bit bitstream-engine error code embedded in
// both families' status registers.
type BSEError byte

const (
	BSENoError BSEError = iota
	BSEID
	BSECommand
	BSECRC
	BSEPreamble
	BSEAbort
	BSEOverflow
	BSESDM
	BSEAuthentication
	BSEAuthenticationSetup
	BSETimeout
)

func (e BSEError) String() string {
	switch e {
	case BSENoError:
		return "no error"
	case BSEID:
		return "ID error"
	case BSECommand:
		return "illegal command"
	case BSECRC:
		return "CRC error"
	case BSEPreamble:
		return "preamble error"
	case BSEAbort:
		return "configuration aborted by the user"
	case BSEOverflow:
		return "data overflow error"
	case BSESDM:
		return "bitstream exceeds SRAM array size"
	case BSEAuthentication:
		return "authentication error"
	case BSEAuthenticationSetup:
		return "authentication setup error"
	case BSETimeout:
		return "bitstream engine timeout"
	default:
		return "reserved"
	}
}

// ConfigTarget is the NX status register's 3-bit configuration-target
// field; ECP5 only distinguishes SRAM from eFuse (see StatusECP5.EFuse).
type ConfigTarget byte

const (
	ConfigTargetSRAM ConfigTarget = iota
	ConfigTargetEFuseNormal
	ConfigTargetEFusePseudo
	ConfigTargetEFuseSafe
)

func (c ConfigTarget) String() string {
	switch c {
	case ConfigTargetSRAM:
		return "SRAM"
	case ConfigTargetEFuseNormal:
		return "eFuse normal"
	case ConfigTargetEFusePseudo:
		return "eFuse pseudo"
	case ConfigTargetEFuseSafe:
		return "eFuse safe"
	default:
		return "invalid"
	}
}

// AuthMode is the NX status register's 2-bit authentication-mode field.
type AuthMode byte

const (
	AuthModeNone AuthMode = iota
	AuthModeECDSA
	AuthModeHMAC
	AuthModeNoneAlt
)

func (a AuthMode) String() string {
	switch a {
	case AuthModeECDSA:
		return "ECDSA"
	case AuthModeHMAC:
		return "HMAC"
	default:
		return "none"
	}
}

// StatusECP5 is the decoded 32-bit LSC_READ_STATUS register for ECP5
// parts, field-for-field against the original tool's
// print_ecp5_status_register.
type StatusECP5 struct {
	Raw              uint32
	TransparentMode  bool
	EFuse            bool
	JTAGActive       bool
	PasswordProtect  bool
	DecryptEnable    bool
	Done             bool
	ISCEnable        bool
	Writable         bool
	Readable         bool
	Busy             bool
	Fail             bool
	FeatureOTP       bool
	DecryptOnly      bool
	PasswordEnable   bool
	EncryptPreamble  bool
	StdPreamble      bool
	SPImFail1        bool
	BSE              BSEError
	ExecutionError   bool
	IDError          bool
	InvalidCommand   bool
	SEDError         bool
	BypassMode       bool
	FlowThroughMode  bool
}

// DecodeStatusECP5 decodes a raw 32-bit ECP5 status register value.
func DecodeStatusECP5(status uint32) StatusECP5 {
	bit := func(n uint) bool { return status&(1<<n) != 0 }
	return StatusECP5{
		Raw:             status,
		TransparentMode: bit(0),
		EFuse:           status&(7<<1) != 0,
		JTAGActive:      bit(4),
		PasswordProtect: bit(5),
		DecryptEnable:   bit(7),
		Done:            bit(8),
		ISCEnable:       bit(9),
		Writable:        bit(10),
		Readable:        bit(11),
		Busy:            bit(12),
		Fail:            bit(13),
		FeatureOTP:      bit(14),
		DecryptOnly:     bit(15),
		PasswordEnable:  bit(16),
		EncryptPreamble: bit(20),
		StdPreamble:     bit(21),
		SPImFail1:       bit(22),
		BSE:             BSEError((status >> 23) & 0x7),
		ExecutionError:  bit(26),
		IDError:         bit(27),
		InvalidCommand:  bit(28),
		SEDError:        bit(29),
		BypassMode:      bit(30),
		FlowThroughMode: bit(31),
	}
}

// StatusNX is the decoded 64-bit LSC_READ_STATUS register for NX parts,
// field-for-field against the original tool's print_nx_status_register,
// extending ECP5's fields with NX's auth/lock/previous-bitstream fields.
type StatusNX struct {
	Raw                  uint64
	TransparentMode      bool
	ConfigTarget         ConfigTarget
	JTAGActive           bool
	PasswordProtect      bool
	OTP                  bool
	Done                 bool
	ISCEnable            bool
	Writable             bool
	Readable             bool
	Busy                 bool
	Fail                 bool
	DecryptOnly          bool
	PasswordEnable       bool
	PasswordAll          bool
	CIDEnable            bool
	EncryptPreamble      bool
	StdPreamble          bool
	SPImFail1            bool
	BSE                  BSEError
	ExecutionError       bool
	IDError              bool
	InvalidCommand       bool
	WDTBusy              bool
	DryRunDone           bool
	PreviousBSE          BSEError
	BypassMode           bool
	FlowThroughMode      bool
	SFDPTimeout          bool
	KeyDestroyPass       bool
	InitN                bool
	I3CParityError2      bool
	InitBusIDError       bool
	I3CParityError1      bool
	AuthMode             AuthMode
	AuthenticationDone   bool
	DryRunAuthDone       bool
	JTAGLocked           bool
	SSPILocked           bool
	I2CI3CLocked         bool
	PubReadLock          bool
	PubWriteLock         bool
	FeaReadLock          bool
	FeaWriteLock         bool
	AESReadLock          bool
	AESWriteLock         bool
	PasswordReadLock     bool
	PasswordWriteLock    bool
	GlobalLock           bool
}

// DecodeStatusNX decodes a raw 64-bit NX status register value.
func DecodeStatusNX(status uint64) StatusNX {
	bit := func(n uint) bool { return status&(1<<n) != 0 }
	return StatusNX{
		Raw:                status,
		TransparentMode:    bit(0),
		ConfigTarget:       ConfigTarget((status >> 1) & 0x7),
		JTAGActive:         bit(4),
		PasswordProtect:    bit(5),
		OTP:                bit(6),
		Done:               bit(8),
		ISCEnable:          bit(9),
		Writable:           bit(10),
		Readable:           bit(11),
		Busy:               bit(12),
		Fail:               bit(13),
		DecryptOnly:        bit(15),
		PasswordEnable:     bit(16),
		PasswordAll:        bit(17),
		CIDEnable:          bit(18),
		EncryptPreamble:    bit(21),
		StdPreamble:        bit(22),
		SPImFail1:          bit(23),
		BSE:                BSEError((status >> 24) & 0xF),
		ExecutionError:     bit(28),
		IDError:            bit(29),
		InvalidCommand:     bit(30),
		WDTBusy:            bit(31),
		DryRunDone:         bit(33),
		PreviousBSE:        BSEError((status >> 34) & 0xF),
		BypassMode:         bit(38),
		FlowThroughMode:    bit(39),
		SFDPTimeout:        bit(42),
		KeyDestroyPass:     bit(43),
		InitN:              bit(44),
		I3CParityError2:    bit(45),
		InitBusIDError:     bit(46),
		I3CParityError1:    bit(47),
		AuthMode:           AuthMode((status >> 48) & 0x3),
		AuthenticationDone: bit(50),
		DryRunAuthDone:     bit(51),
		JTAGLocked:         bit(52),
		SSPILocked:         bit(53),
		I2CI3CLocked:       bit(54),
		PubReadLock:        bit(55),
		PubWriteLock:       bit(56),
		FeaReadLock:        bit(57),
		FeaWriteLock:       bit(58),
		AESReadLock:        bit(59),
		AESWriteLock:       bit(60),
		PasswordReadLock:   bit(61),
		PasswordWriteLock:  bit(62),
		GlobalLock:         bit(63),
	}
}

// ReadStatus shifts the LSC_READ_STATUS instruction and the matching DR
// width for family (64 bits for NX, 32 bits otherwise), reassembling
// the result MSB-first the same way readIDCode does.
func (d *Device) ReadStatus(family Family) (uint64, error) {
	if err := d.shiftIR(irLSCReadStatus); err != nil {
		return 0, err
	}
	nBits := 32
	if family == FamilyNX {
		nBits = 64
	}
	data, err := d.tap.Shift(true, make([]byte, nBits/8), nBits, true)
	if err != nil {
		return 0, err
	}
	return reassembleStatus(data), nil
}

// reassembleStatus rebuilds an n-byte, LSB-first-captured scan into an
// MSB-first unsigned value, generalizing reassemble32 to the 8-byte NX
// status register.
func reassembleStatus(data []byte) uint64 {
	var v uint64
	shift := uint(len(data)-1) * 8
	for i := 0; i < len(data); i++ {
		v = uint64(data[i])<<shift | v>>8
	}
	return v
}
