package domain

// SidecarNeed 描述 jukebox 目录里还缺哪些产物。
type SidecarNeed struct {
	NeedNFO    bool
	NeedPoster bool
	NeedFanart bool
}

// ItemPlan 是对某条记录的最小执行计划（planner 只做 stat 与缓存探测，不访问网络）。
type ItemPlan struct {
	Key       string
	Kind      Kind
	Files     []VideoFile
	SourceMod int64

	// LocalNFO 是视频旁边找到的 NFO 绝对路径；没有则为空。
	LocalNFO string

	Need SidecarNeed
}
