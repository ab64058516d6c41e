package domain

// VideoFile 是扫描到的一个视频文件。一个 Record 由一个或多个 VideoFile 组成（多碟电影、同一季的多集）。
//
// 约束：Library / AbsPath 都是 clean + absolute；扫描阶段只 stat，不读内容。
type VideoFile struct {
	Library string
	AbsPath string
	RelPath string // 相对 Library
	Base    string // 去掉扩展名的文件名，naming 从这里解析 identity
	Ext     string // 小写，带点：".mkv"
	Size    int64
	ModUnix int64 // Record.SourceMod 取组内最大值
}
