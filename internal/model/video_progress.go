package model

import (
	"math"
	"time"
)

const (
	// 观看历史只在百分比变化达到该幅度时追加
	WatchHistoryThreshold = 5
	// 观看历史的最大条数，超出时淘汰最旧的
	WatchHistoryLimit = 50
)

type WatchEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	MinutesWatched float64   `json:"minutesWatched"`
	Percentage     int       `json:"percentage"`
}

type WatchHistory []WatchEntry

// VideoProgress 每个用户每门课程每个视频一条观看记录
type VideoProgress struct {
	BaseModel
	UserID           uint         `gorm:"uniqueIndex:idx_video_progress_triple;not null" json:"userId"`
	CourseID         uint         `gorm:"uniqueIndex:idx_video_progress_triple;not null" json:"courseId"`
	VideoID          string       `gorm:"size:64;uniqueIndex:idx_video_progress_triple;not null" json:"videoId"`
	CompletedMinutes float64      `gorm:"not null;default:0" json:"completedMinutes"`
	Percentage       int          `gorm:"not null;default:0" json:"percentage"`
	LastWatched      time.Time    `json:"lastWatched"`
	WatchHistory     WatchHistory `gorm:"serializer:json" json:"watchHistory"`
}

func (VideoProgress) TableName() string {
	return "video_progress"
}

// RecordWatch 更新单个视频的观看数据并按阈值追加有界历史
func (v *VideoProgress) RecordWatch(completedMinutes float64, percentage int, now time.Time) {
	v.CompletedMinutes = completedMinutes
	v.Percentage = percentage
	v.LastWatched = now

	if len(v.WatchHistory) > 0 {
		last := v.WatchHistory[len(v.WatchHistory)-1]
		if math.Abs(float64(percentage-last.Percentage)) < WatchHistoryThreshold {
			return
		}
	}

	v.WatchHistory = append(v.WatchHistory, WatchEntry{
		Timestamp:      now,
		MinutesWatched: completedMinutes,
		Percentage:     percentage,
	})
	if len(v.WatchHistory) > WatchHistoryLimit {
		v.WatchHistory = v.WatchHistory[len(v.WatchHistory)-WatchHistoryLimit:]
	}
}

// Reset 清零观看数据，历史一并清空
func (v *VideoProgress) Reset(now time.Time) {
	v.CompletedMinutes = 0
	v.Percentage = 0
	v.LastWatched = now
	v.WatchHistory = WatchHistory{}
}
