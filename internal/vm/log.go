package vm

import "github.com/tliron/commonlog"

var (
	vmLog = commonlog.GetLogger("orus.vm")
	gcLog = commonlog.GetLogger("orus.gc")
)
