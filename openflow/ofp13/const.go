package ofp13

const Version uint8 = 0x04

// Message types.
const (
	OFPT_HELLO uint8 = iota
	OFPT_ERROR
	OFPT_ECHO_REQUEST
	OFPT_ECHO_REPLY
	OFPT_EXPERIMENTER
	OFPT_FEATURES_REQUEST
	OFPT_FEATURES_REPLY
	OFPT_GET_CONFIG_REQUEST
	OFPT_GET_CONFIG_REPLY
	OFPT_SET_CONFIG
	OFPT_PACKET_IN
	OFPT_FLOW_REMOVED
	OFPT_PORT_STATUS
	OFPT_PACKET_OUT
	OFPT_FLOW_MOD
	OFPT_GROUP_MOD
	OFPT_PORT_MOD
	OFPT_TABLE_MOD
	OFPT_MULTIPART_REQUEST
	OFPT_MULTIPART_REPLY
	OFPT_BARRIER_REQUEST
	OFPT_BARRIER_REPLY
	OFPT_QUEUE_GET_CONFIG_REQUEST
	OFPT_QUEUE_GET_CONFIG_REPLY
	OFPT_ROLE_REQUEST
	OFPT_ROLE_REPLY
	OFPT_GET_ASYNC_REQUEST
	OFPT_GET_ASYNC_REPLY
	OFPT_SET_ASYNC
	OFPT_METER_MOD
)

// Instruction types added in 1.3.
const OFPIT13_METER uint16 = 6

const OFPTC13_DEPRECATED_MASK uint32 = 3

// Flow-mod flags added in 1.3.
const (
	OFPFF13_NO_PKT_COUNTS uint16 = 1 << 3
	OFPFF13_NO_BYT_COUNTS uint16 = 1 << 4
)

// Meter numbering.
const (
	OFPM13_MAX        uint32 = 0xffff0000
	OFPM13_SLOWPATH   uint32 = 0xfffffffd
	OFPM13_CONTROLLER uint32 = 0xfffffffe
	OFPM13_ALL        uint32 = 0xffffffff
)

// Meter commands.
const (
	OFPMC13_ADD uint16 = iota
	OFPMC13_MODIFY
	OFPMC13_DELETE
)

// Meter flags.
const (
	OFPMF13_KBPS  uint16 = 1 << 0
	OFPMF13_PKTPS uint16 = 1 << 1
	OFPMF13_BURST uint16 = 1 << 2
	OFPMF13_STATS uint16 = 1 << 3
)

// Meter band types.
const (
	OFPMBT13_DROP         uint16 = 1
	OFPMBT13_DSCP_REMARK  uint16 = 2
	OFPMBT13_EXPERIMENTER uint16 = 0xffff
)

// Multipart flags.
const (
	OFPMPF13_REQ_MORE   uint16 = 1 << 0
	OFPMPF13_REPLY_MORE uint16 = 1 << 0
)

// Multipart types.
const (
	OFPMP13_DESC           uint16 = 0
	OFPMP13_FLOW           uint16 = 1
	OFPMP13_AGGREGATE      uint16 = 2
	OFPMP13_TABLE          uint16 = 3
	OFPMP13_PORT           uint16 = 4
	OFPMP13_QUEUE          uint16 = 5
	OFPMP13_GROUP          uint16 = 6
	OFPMP13_METER          uint16 = 9
	OFPMP13_METER_CONFIG   uint16 = 10
	OFPMP13_METER_FEATURES uint16 = 11
	OFPMP13_TABLE_FEATURES uint16 = 12
)

// Table-features commands (1.5 semantics; earlier versions behave as
// REPLACE).
const (
	OFPTFC15_REPLACE uint8 = 0
	OFPTFC15_MODIFY  uint8 = 1
	OFPTFC15_ENABLE  uint8 = 2
	OFPTFC15_DISABLE uint8 = 3
)

// Table feature property types. The low bit marks the table-miss
// variant.
const (
	OFPTFPT13_INSTRUCTIONS        uint16 = 0
	OFPTFPT13_INSTRUCTIONS_MISS   uint16 = 1
	OFPTFPT13_NEXT_TABLES         uint16 = 2
	OFPTFPT13_NEXT_TABLES_MISS    uint16 = 3
	OFPTFPT13_WRITE_ACTIONS       uint16 = 4
	OFPTFPT13_WRITE_ACTIONS_MISS  uint16 = 5
	OFPTFPT13_APPLY_ACTIONS       uint16 = 6
	OFPTFPT13_APPLY_ACTIONS_MISS  uint16 = 7
	OFPTFPT13_MATCH               uint16 = 8
	OFPTFPT13_WILDCARDS           uint16 = 10
	OFPTFPT13_WRITE_SETFIELD      uint16 = 12
	OFPTFPT13_WRITE_SETFIELD_MISS uint16 = 13
	OFPTFPT13_APPLY_SETFIELD      uint16 = 14
	OFPTFPT13_APPLY_SETFIELD_MISS uint16 = 15
	OFPTFPT13_EXPERIMENTER        uint16 = 0xfffe
	OFPTFPT13_EXPERIMENTER_MISS   uint16 = 0xffff
)

// OFPTFPT13_REQUIRED has a bit set for each property that must occur
// exactly once.
const OFPTFPT13_REQUIRED uint32 = 1<<OFPTFPT13_INSTRUCTIONS |
	1<<OFPTFPT13_NEXT_TABLES |
	1<<OFPTFPT13_WRITE_ACTIONS |
	1<<OFPTFPT13_APPLY_ACTIONS |
	1<<OFPTFPT13_MATCH |
	1<<OFPTFPT13_WILDCARDS |
	1<<OFPTFPT13_WRITE_SETFIELD |
	1<<OFPTFPT13_APPLY_SETFIELD

const OFP_MAX_TABLE_NAME_LEN = 32

// ONF flow monitor extension.
const ONF_EXPERIMENTER_ID uint32 = 0x4f4e4600

const (
	ONFT_FLOW_MONITOR_CANCEL  uint32 = 1870
	ONFT_FLOW_MONITOR_PAUSED  uint32 = 1871
	ONFT_FLOW_MONITOR_RESUMED uint32 = 1872
)

const (
	ONFFMF_INITIAL uint16 = 1 << 0
	ONFFMF_ADD     uint16 = 1 << 1
	ONFFMF_DELETE  uint16 = 1 << 2
	ONFFMF_MODIFY  uint16 = 1 << 3
	ONFFMF_ACTIONS uint16 = 1 << 4
	ONFFMF_OWN     uint16 = 1 << 5
)

const (
	ONFFME_ADDED    uint16 = 0
	ONFFME_DELETED  uint16 = 1
	ONFFME_MODIFIED uint16 = 2
	ONFFME_ABBREV   uint16 = 3
)

// Error types and codes used by the daemon.
const (
	OFPET_HELLO_FAILED     uint16 = 0
	OFPET_BAD_REQUEST      uint16 = 1
	OFPET_METER_MOD_FAILED uint16 = 12
)

const (
	OFPBRC_BAD_VERSION   uint16 = 0
	OFPBRC_BAD_TYPE      uint16 = 1
	OFPBRC_BAD_MULTIPART uint16 = 2
	OFPBRC_BAD_LEN       uint16 = 6
)

const (
	OFPMMFC_UNKNOWN        uint16 = 0
	OFPMMFC_METER_EXISTS   uint16 = 1
	OFPMMFC_INVALID_METER  uint16 = 2
	OFPMMFC_UNKNOWN_METER  uint16 = 3
	OFPMMFC_BAD_COMMAND    uint16 = 4
	OFPMMFC_BAD_FLAGS      uint16 = 5
	OFPMMFC_BAD_RATE       uint16 = 6
	OFPMMFC_BAD_BURST      uint16 = 7
	OFPMMFC_BAD_BAND       uint16 = 8
	OFPMMFC_BAD_BAND_VALUE uint16 = 9
	OFPMMFC_OUT_OF_METERS  uint16 = 10
	OFPMMFC_OUT_OF_BANDS   uint16 = 11
)
