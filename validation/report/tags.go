package report

// MessageTag is the stable identifier of a check. Rendering a tag to text
// is left to report consumers.
type MessageTag string

// Identification of the signing certificate.
const (
	BBB_ICS_ISASCP   MessageTag = "BBB_ICS_ISASCP"   // signing-certificate attribute present
	BBB_ICS_ISCI     MessageTag = "BBB_ICS_ISCI"     // signing certificate identified
	BBB_ICS_ICDVV    MessageTag = "BBB_ICS_ICDVV"    // certificate digest value valid
	BBB_ICS_AIDNASNE MessageTag = "BBB_ICS_AIDNASNE" // issuer DN and serial match
)

// Validation context initialization.
const (
	BBB_VCI_ISPK MessageTag = "BBB_VCI_ISPK" // signature policy identifier known
	BBB_VCI_ISPA MessageTag = "BBB_VCI_ISPA" // signature policy available
	BBB_VCI_ISPM MessageTag = "BBB_VCI_ISPM" // signature policy hash matches
)

// X.509 certificate validation.
const (
	BBB_XCV_CCCBB    MessageTag = "BBB_XCV_CCCBB"    // chain can be built to a trust anchor
	BBB_XCV_TSL_ETIP MessageTag = "BBB_XCV_TSL_ETIP" // trusted service type matches
	BBB_XCV_TSL_ESP  MessageTag = "BBB_XCV_TSL_ESP"  // trusted service status matches
	BBB_XCV_SUB      MessageTag = "BBB_XCV_SUB"      // certificate validation passed
	BBB_XCV_ICSI     MessageTag = "BBB_XCV_ICSI"     // certificate signature intact
	BBB_XCV_ISCGKU   MessageTag = "BBB_XCV_ISCGKU"   // key usage
	BBB_XCV_ISCGEKU  MessageTag = "BBB_XCV_ISCGEKU"  // extended key usage
	BBB_XCV_ISCA     MessageTag = "BBB_XCV_ISCA"     // basic constraints CA
	BBB_XCV_ICPL     MessageTag = "BBB_XCV_ICPL"     // path length constraint
	BBB_XCV_IRDPFC   MessageTag = "BBB_XCV_IRDPFC"   // revocation data present
	BBB_XCV_IRDTFC   MessageTag = "BBB_XCV_IRDTFC"   // revocation data fresh
	BBB_XCV_ISCR     MessageTag = "BBB_XCV_ISCR"     // certificate not revoked
	BBB_XCV_ISCOH    MessageTag = "BBB_XCV_ISCOH"    // certificate not on hold
	BBB_XCV_ACCM     MessageTag = "BBB_XCV_ACCM"     // cryptographic constraints
	BBB_XCV_ICTIVRSC MessageTag = "BBB_XCV_ICTIVRSC" // validation time in validity range
)

// Cryptographic verification.
const (
	BBB_CV_IRDOF MessageTag = "BBB_CV_IRDOF" // reference data object found
	BBB_CV_IRDOI MessageTag = "BBB_CV_IRDOI" // reference data object intact
	BBB_CV_ISI   MessageTag = "BBB_CV_ISI"   // signature intact
	BBB_CV_ASCCM MessageTag = "BBB_CV_ASCCM" // algorithm and key size supported
)

// Signature acceptance validation.
const (
	BBB_SAV_ISQPSTP MessageTag = "BBB_SAV_ISQPSTP" // signing time present
	BBB_SAV_ISTNF   MessageTag = "BBB_SAV_ISTNF"   // signing time not in the future
	BBB_SAV_ISQPMA  MessageTag = "BBB_SAV_ISQPMA"  // mandated signed attributes present
	BBB_SAV_ICTSTN  MessageTag = "BBB_SAV_ICTSTN"  // content timestamp not after signing
	BBB_SAV_ACCM    MessageTag = "BBB_SAV_ACCM"    // cryptographic constraints
	BBB_SAV_TSP_IMI MessageTag = "BBB_SAV_TSP_IMI" // timestamp message imprint intact
)

// Past certificate validation.
const (
	PCV_IPCVC  MessageTag = "PCV_IPCVC"  // prospective chain trusted
	PCV_IVTSC  MessageTag = "PCV_IVTSC"  // validity intervals intersect
	PCV_ICSI   MessageTag = "PCV_ICSI"   // certificate signatures intact
	PCV_ICTSC  MessageTag = "PCV_ICTSC"  // control time sliding succeeded
	PCV_IXCVAT MessageTag = "PCV_IXCVAT" // chain valid at control time
)

// Past signature validation.
const (
	PSV_IPCVA   MessageTag = "PSV_IPCVA"   // past certificate validation passed
	PSV_IPSVC   MessageTag = "PSV_IPSVC"   // POE exists before control time
	PSV_ITPORDR MessageTag = "PSV_ITPORDR" // POE predates revocation
	PSV_BSTIVR  MessageTag = "PSV_BSTIVR"  // best signature time in validity range
	PSV_ITPOCSA MessageTag = "PSV_ITPOCSA" // POE predates algorithm expiration
)

// Evidence record validation.
const (
	ERV_ATS_ORDER MessageTag = "ERV_ATS_ORDER" // chains and timestamps in order
	ERV_IFATSHV   MessageTag = "ERV_IFATSHV"   // first timestamp covers data objects
	ERV_IHTRV     MessageTag = "ERV_IHTRV"     // hash tree root matches imprint
	ERV_ATS_LINK  MessageTag = "ERV_ATS_LINK"  // timestamp covers the previous one
	ERV_ATS_ALGO  MessageTag = "ERV_ATS_ALGO"  // hash algorithm consistent and acceptable
	ERV_ATS_BBB   MessageTag = "ERV_ATS_BBB"   // archive timestamp valid
)

// Long-term and archival validation.
const (
	LTV_ABSV   MessageTag = "LTV_ABSV"   // basic signature validation accepted
	LTV_TSV    MessageTag = "LTV_TSV"    // timestamp validated
	LTV_TSO    MessageTag = "LTV_TSO"    // timestamps in order
	LTV_PSV    MessageTag = "LTV_PSV"    // past signature validation
	ARCH_ERV   MessageTag = "ARCH_ERV"   // evidence record valid
	ARCH_ATSV  MessageTag = "ARCH_ATSV"  // archive timestamp valid
	ARCH_LTVV  MessageTag = "ARCH_LTVV"  // long-term validation accepted
	ARCH_BSTPS MessageTag = "ARCH_BSTPS" // best signature time established
)
