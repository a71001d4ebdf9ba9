package protocol

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ToDecimalDegrees 把 DDDMM.MMMM 度分编码转成十进制度。
// 南纬/西经取负值；空串或无法解析返回 0，调用方需把 (0,0) 视为坐标不可用。
func ToDecimalDegrees(value, hemisphere string) float64 {
	if value == "" || hemisphere == "" {
		return 0
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	deg := math.Floor(v / 100)
	mins := v - deg*100
	decimal := deg + mins/60

	switch strings.ToUpper(hemisphere) {
	case "S", "W":
		decimal = -decimal
	}
	return decimal
}

// parseStandardTimestamp 解析标准报文的 YYMMDDHHMM[SS] 字段（UTC）。
// 字段缺失或畸形时退回接收时刻。
func parseStandardTimestamp(s string, fallback time.Time) time.Time {
	if len(s) < 10 {
		return fallback
	}
	yy, err1 := strconv.Atoi(s[0:2])
	mm, err2 := strconv.Atoi(s[2:4])
	dd, err3 := strconv.Atoi(s[4:6])
	hh, err4 := strconv.Atoi(s[6:8])
	mi, err5 := strconv.Atoi(s[8:10])
	ss := 0
	if len(s) >= 12 {
		if v, err := strconv.Atoi(s[10:12]); err == nil {
			ss = v
		}
	}
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return fallback
	}
	return time.Date(2000+yy, time.Month(mm), dd, hh, mi, ss, 0, time.UTC)
}

// parseHQTimestamp 解析 HQ 报文分离的 HHMMSS 时间与 DDMMYY 日期字段（UTC）。
func parseHQTimestamp(timeStr, dateStr string, fallback time.Time) time.Time {
	if len(timeStr) < 6 || len(dateStr) < 6 {
		return fallback
	}
	hh, err1 := strconv.Atoi(timeStr[0:2])
	mi, err2 := strconv.Atoi(timeStr[2:4])
	ss, err3 := strconv.Atoi(timeStr[4:6])
	dd, err4 := strconv.Atoi(dateStr[0:2])
	mm, err5 := strconv.Atoi(dateStr[2:4])
	yy, err6 := strconv.Atoi(dateStr[4:6])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
		return fallback
	}
	return time.Date(2000+yy, time.Month(mm), dd, hh, mi, ss, 0, time.UTC)
}
