package guard

// Pattern tables for the rules engine. Chinese patterns match by substring,
// Latin patterns additionally go through fuzzy matching to absorb ASR noise.
// Order inside each list is priority order for reporting.

var defaultWakewords = map[WakewordType][]string{
	WakeEmergency: {"救命", "救我", "help", "emergency"},
	WakePrimary:   {"小伴", "机器人", "companion", "robot", "小安"},
	WakeAttention: {"听着", "注意", "listen", "attention"},
}

// wakewordPriority is the scan order for DetectWakeword.
var wakewordPriority = []WakewordType{WakeEmergency, WakePrimary, WakeAttention}

var defaultSOSKeywords = map[SOSCategory][]string{
	SOSExplicit:  {"救命", "sos", "求救", "报警", "help", "emergency", "call police"},
	SOSMedical:   {"心脏病", "中风", "呼吸困难", "胸痛", "心脏", "意识不清", "heart attack", "stroke", "chest pain", "cant breathe", "unconscious"},
	SOSFall:      {"摔倒", "跌倒", "起不来", "腿断了", "fallen", "fell down", "cant get up", "broken leg"},
	SOSConfusion: {"迷路", "不记得", "糊涂", "不知道在哪", "lost", "confused", "dont remember", "where am i"},
	SOSEmotional: {"害怕", "孤独", "绝望", "想死", "scared", "lonely", "desperate", "want to die"},
}

// sosPriority is the scan order for DetectSOS. The first category with a
// match decides urgency; keywords from lower categories still accumulate.
var sosPriority = []SOSCategory{SOSExplicit, SOSMedical, SOSFall, SOSConfusion, SOSEmotional}

// sosUrgency is the base urgency per category before the stress bump.
var sosUrgency = map[SOSCategory]int{
	SOSExplicit:  4,
	SOSMedical:   4,
	SOSFall:      3,
	SOSConfusion: 2,
	SOSEmotional: 2,
}

var defaultImplicitPatterns = map[CommandType][]string{
	CmdTemperature: {"冷", "热", "温度", "cold", "hot", "temperature"},
	CmdLighting:    {"暗", "亮", "看不清", "dark", "bright", "cant see"},
	CmdAssistance:  {"帮我", "不会", "help me", "dont know how"},
	CmdSocial:      {"孤独", "无聊", "聊天", "lonely", "bored", "talk"},
}

// implicitPriority is the evaluation order for RecognizeImplicit.
var implicitPriority = []CommandType{CmdTemperature, CmdLighting, CmdAssistance, CmdSocial}

// Direct smart-home extraction tables. A verb plus a device noun in the same
// utterance yields a concrete intent without touching the LLM.

type verbRule struct {
	pattern string
	action  string // intent.Action value
}

var deviceVerbs = []verbRule{
	{"打开", "on"},
	{"开一下", "on"},
	{"turn on", "on"},
	{"switch on", "on"},
	{"关掉", "off"},
	{"关上", "off"},
	{"关一下", "off"},
	{"turn off", "off"},
	{"switch off", "off"},
	{"调亮", "set"},
	{"调暗", "set"},
	{"调高", "set"},
	{"调低", "set"},
	{"brighten", "set"},
	{"dim", "set"},
	// Bare 开/关 last so the longer compounds above win their action.
	{"开", "on"},
	{"关", "off"},
}

type deviceRule struct {
	pattern string
	kind    string // "light" or "hvac_system"
}

var deviceNouns = []deviceRule{
	{"灯", "light"},
	{"light", "light"},
	{"lamp", "light"},
	{"空调", "hvac_system"},
	{"暖气", "hvac_system"},
	{"air conditioner", "hvac_system"},
	{"heater", "hvac_system"},
	{"hvac", "hvac_system"},
}

// lockNouns route to the confirmation flow instead of direct execution.
var lockNouns = []string{"门锁", "door lock", "unlock the door", "开锁"}

var roomAliases = []struct {
	pattern string
	room    string
}{
	{"客厅", "living_room"},
	{"卧室", "bedroom"},
	{"厨房", "kitchen"},
	{"卫生间", "bathroom"},
	{"洗手间", "bathroom"},
	{"living room", "living_room"},
	{"bedroom", "bedroom"},
	{"kitchen", "kitchen"},
	{"bathroom", "bathroom"},
}

// defaultHighRiskDevices always require spoken confirmation regardless of
// how the intent was produced.
var defaultHighRiskDevices = []string{"front_door_lock", "door_lock", "gas_valve", "stove"}
