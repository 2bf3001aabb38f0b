// Package loyalty содержит правила программы лояльности и клиент внешней системы баллов.
package loyalty

// Level описывает уровень участника программы лояльности.
type Level struct {
	Name      string
	MinPoints int64
}

// Levels перечисляет уровни в порядке возрастания порога.
var Levels = []Level{
	{Name: "Bronce", MinPoints: 0},
	{Name: "Plata", MinPoints: 500},
	{Name: "Oro", MinPoints: 1500},
	{Name: "Diamante", MinPoints: 5000},
}

const pointsDivisor = 10

// PointsForAmount возвращает баллы за оплаченную сумму: один балл за каждые 10 единиц.
func PointsForAmount(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return amount / pointsDivisor
}

// LevelFor возвращает уровень для накопленных баллов.
func LevelFor(points int64) Level {
	current := Levels[0]
	for _, l := range Levels {
		if points < l.MinPoints {
			break
		}
		current = l
	}
	return current
}

// Progress возвращает текущий уровень, следующий уровень и недостающие до него баллы.
// Для максимального уровня next == nil.
func Progress(points int64) (current Level, next *Level, missing int64) {
	current = LevelFor(points)
	for i := range Levels {
		if Levels[i].MinPoints > points {
			n := Levels[i]
			return current, &n, n.MinPoints - points
		}
	}
	return current, nil, 0
}
