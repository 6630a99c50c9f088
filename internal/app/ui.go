package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"yashubustudio/nertally/ner"
	"yashubustudio/nertally/tally"
)

type tableColumn struct {
	Title  string
	Width  float32
	Render func(recordRow) string
}

var keyModeChoices = []struct {
	Label string
	Value tally.KeyMode
}{
	{Label: "カテゴリ＋テキスト", Value: tally.KeyByCategory},
	{Label: "テキストのみ", Value: tally.KeyByText},
}

var engineChoices = []string{ner.EngineAuto, ner.EngineONNX, ner.EngineGazetteer}

type uiState struct {
	svcMu    sync.Mutex
	svc      *tally.Service
	svcModel string
	svcKind  string
	cfg      tally.Config
	logger   *log.Logger

	report tally.Report
	source string

	w             fyne.Window
	modelPath     *widget.Entry
	input         *widget.Entry
	log           *widget.Entry
	status        *widget.Label
	progress      *widget.ProgressBar
	configSummary *widget.Label
	bestLabel     *widget.Label
	resTbl        *widget.Table
	columns       []tableColumn
	rows          []recordRow
	statusBind    binding.String
	logBind       binding.String
	progressBind  binding.Float
	logs          *logPane

	analyzeBtn *widget.Button
	exportBtn  *widget.Button
	loadBtn    *widget.Button
	modelBtn   *widget.Button
}

func buildUI(a fyne.App, cfg tally.Config) *uiState {
	u := &uiState{cfg: cfg}
	u.w = a.NewWindow("NER Tally - 固有表現の集計")

	u.statusBind = binding.NewString()
	_ = u.statusBind.Set("準備完了")
	u.progressBind = binding.NewFloat()
	u.logBind = binding.NewString()
	u.logs = newLogPane(u.logBind)
	go u.logs.run(logFlushInterval)
	u.logger = log.New(io.MultiWriter(os.Stdout, logWriter{appendLine: u.appendLog}), "", 0)

	u.modelPath = widget.NewEntry()
	u.modelPath.SetPlaceHolder("モデル (ONNXフォルダ または 辞書 .tsv)")
	u.modelPath.SetText(cfg.Engine.ModelPath)

	u.input = widget.NewMultiLineEntry()
	u.input.Wrapping = fyne.TextWrapWord
	u.input.SetPlaceHolder("ここに解析する文章を入力")
	u.input.OnChanged = func(string) { u.source = "" }

	u.log = widget.NewEntryWithData(u.logBind)
	u.log.MultiLine = true
	u.log.Wrapping = fyne.TextWrapWord
	u.log.SetPlaceHolder("処理ログ")
	u.log.Disable()

	u.status = widget.NewLabelWithData(u.statusBind)
	u.progress = widget.NewProgressBarWithData(u.progressBind)
	u.progress.Hide()
	u.configSummary = widget.NewLabel("")
	u.bestLabel = widget.NewLabel("")
	u.bestLabel.Wrapping = fyne.TextWrapWord

	u.analyzeBtn = widget.NewButtonWithIcon("解析実行", theme.ConfirmIcon(), func() { u.onAnalyze() })
	u.exportBtn = widget.NewButtonWithIcon("CSVエクスポート", theme.DocumentSaveIcon(), func() { u.onExport() })
	u.loadBtn = widget.NewButtonWithIcon("ファイル読込", theme.FolderOpenIcon(), func() { u.onLoadFile() })
	u.modelBtn = widget.NewButtonWithIcon("モデル選択", theme.FileIcon(), func() { u.onPickModel() })
	modelDirBtn := widget.NewButtonWithIcon("", theme.FolderIcon(), func() { u.onPickModelDir() })
	settingsBtn := widget.NewButtonWithIcon("設定", theme.SettingsIcon(), func() { u.openSettings() })

	u.columns = []tableColumn{
		{Title: "件数", Width: 70, Render: func(r recordRow) string { return fmt.Sprintf("%d", r.Count) }},
		{Title: "カテゴリ", Width: 130, Render: func(r recordRow) string { return r.Category }},
		{Title: "テキスト", Width: 320, Render: func(r recordRow) string { return truncateText(r.Text, 80) }},
		{Title: "最多", Width: 60, Render: func(r recordRow) string {
			if r.Best {
				return "★"
			}
			return ""
		}},
	}
	u.resTbl = widget.NewTable(
		func() (int, int) { return len(u.rows) + 1, len(u.columns) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			lbl := obj.(*widget.Label)
			if id.Row == 0 {
				lbl.SetText(u.columns[id.Col].Title)
				lbl.Alignment = fyne.TextAlignCenter
				lbl.TextStyle = fyne.TextStyle{Bold: true}
				return
			}
			lbl.Alignment = fyne.TextAlignLeading
			lbl.TextStyle = fyne.TextStyle{}
			rowIdx := id.Row - 1
			if rowIdx >= len(u.rows) {
				lbl.SetText("")
				return
			}
			lbl.SetText(u.columns[id.Col].Render(u.rows[rowIdx]))
		},
	)
	for i, col := range u.columns {
		u.resTbl.SetColumnWidth(i, col.Width)
	}

	modelRow := container.NewBorder(nil, nil, nil, container.NewHBox(u.modelBtn, modelDirBtn), u.modelPath)
	controls := container.NewGridWithColumns(4, u.analyzeBtn, u.loadBtn, u.exportBtn, settingsBtn)
	left := container.NewVBox(
		widget.NewLabelWithStyle("モデル", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		modelRow,
		widget.NewLabelWithStyle("入力テキスト", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewGridWrap(fyne.NewSize(400, 220), u.input),
		controls,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("進捗", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		u.progress,
		u.status,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("設定サマリ", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		u.configSummary,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("ログ", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewGridWrap(fyne.NewSize(400, 160), u.log),
	)

	right := container.NewBorder(
		container.NewVBox(
			widget.NewLabelWithStyle("カテゴリ別の最多テキスト", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			u.bestLabel,
			widget.NewSeparator(),
		),
		nil, nil, nil, u.resTbl)
	split := container.NewHSplit(container.NewVScroll(left), right)
	split.Offset = 0.4

	u.w.SetContent(split)
	u.w.Resize(fyne.NewSize(1180, 760))
	u.updateConfigSummary()
	return u
}

func (u *uiState) close() {
	u.svcMu.Lock()
	defer u.svcMu.Unlock()
	if u.svc != nil {
		_ = u.svc.Close()
		u.svc = nil
	}
}

// service returns the open service, reopening it when the model or engine changed.
func (u *uiState) service(cfg tally.Config) (*tally.Service, error) {
	u.svcMu.Lock()
	defer u.svcMu.Unlock()
	if u.svc != nil && u.svcModel == cfg.Engine.ModelPath && u.svcKind == cfg.Engine.Kind {
		u.svc.UpdateConfig(cfg)
		return u.svc, nil
	}
	if u.svc != nil {
		_ = u.svc.Close()
		u.svc = nil
	}
	svc, err := tally.Open(cfg, u.logger)
	if err != nil {
		return nil, err
	}
	svc.SetProgress(func(done, total int) {
		u.setProgress(done, total)
		u.setStatus(fmt.Sprintf("解析中 %d/%d", done, total))
	})
	u.svc = svc
	u.svcModel = cfg.Engine.ModelPath
	u.svcKind = cfg.Engine.Kind
	return svc, nil
}

func (u *uiState) setBusy(b bool) {
	fyne.Do(func() {
		for _, btn := range []*widget.Button{u.analyzeBtn, u.exportBtn, u.loadBtn, u.modelBtn} {
			if b {
				btn.Disable()
			} else {
				btn.Enable()
			}
		}
	})
}

func (u *uiState) appendLog(msg string) {
	u.logs.Append(msg)
}

func (u *uiState) setStatus(text string) {
	_ = u.statusBind.Set(text)
}

// setProgress scales the bar to total and moves it to done.
func (u *uiState) setProgress(done, total int) {
	fyne.Do(func() {
		u.progress.Min = 0
		u.progress.Max = float64(total)
	})
	_ = u.progressBind.Set(float64(done))
}

func (u *uiState) progressVisible(show bool) {
	fyne.Do(func() {
		if show {
			u.progress.Show()
		} else {
			u.progress.Hide()
		}
	})
}

func (u *uiState) updateConfigSummary() {
	cfg := u.cfg
	cats := strings.Join(cfg.Categories, ",")
	if cfg.TrackAll {
		cats = "全カテゴリ"
	}
	keyLabel := string(cfg.KeyMode)
	for _, c := range keyModeChoices {
		if c.Value == cfg.KeyMode {
			keyLabel = c.Label
			break
		}
	}
	store := "OFF"
	if cfg.StorePath != "" {
		store = filepath.Base(cfg.StorePath)
	}
	u.configSummary.SetText(fmt.Sprintf("エンジン:%s / 集計キー:%s / 対象:%s / 履歴DB:%s",
		cfg.Engine.Kind, keyLabel, cats, store))
}

func (u *uiState) onAnalyze() {
	text := u.input.Text
	if strings.TrimSpace(text) == "" {
		dialog.ShowInformation("情報", "入力テキストが空です", u.w)
		return
	}
	cfg := u.cfg.Clone()
	cfg.Engine.ModelPath = strings.TrimSpace(u.modelPath.Text)
	if cfg.Engine.ModelPath == "" {
		dialog.ShowInformation("情報", "モデルを選択してください", u.w)
		return
	}
	u.cfg = cfg
	source := u.source
	if source == "" {
		source = "入力テキスト"
	}

	u.setProgress(0, 1)
	u.progressVisible(true)
	u.setStatus("モデル読込中...")
	u.setBusy(true)
	start := time.Now()

	go func() {
		defer u.setBusy(false)
		defer u.progressVisible(false)

		svc, err := u.service(cfg)
		if err != nil {
			u.fail(err)
			return
		}
		tokens := ner.Tokenize(text)
		u.appendLog(fmt.Sprintf("解析開始 %s (%d トークン)", source, len(tokens)))
		u.setStatus("解析中...")
		rep, err := svc.Analyze(context.Background(), source, tokens, nil)
		if err != nil {
			u.fail(err)
			return
		}
		if cfg.StorePath != "" {
			if err := u.saveRun(rep, cfg.StorePath); err != nil {
				u.appendLog(fmt.Sprintf("履歴保存エラー: %v", err))
			}
		}
		rows := recordRows(rep)
		summary := bestSummary(rep)
		fyne.Do(func() {
			u.report = rep
			u.rows = rows
			u.bestLabel.SetText(summary)
			u.resTbl.Refresh()
		})
		elapsed := time.Since(start).Seconds()
		u.setStatus(fmt.Sprintf("完了 検出%d件 / 種類%d (%.1fs)", rep.Results.Total, len(rows), elapsed))
		u.appendLog(fmt.Sprintf("解析完了 検出%d件 (%.1fs)", rep.Results.Total, elapsed))
	}()
}

func (u *uiState) fail(err error) {
	fyne.Do(func() {
		dialog.ShowError(err, u.w)
	})
	u.setStatus("エラー")
	u.appendLog(fmt.Sprintf("エラー: %v", err))
}

func (u *uiState) saveRun(rep tally.Report, path string) error {
	store, err := tally.OpenStore(path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.SaveReport(context.Background(), rep); err != nil {
		return err
	}
	u.appendLog(fmt.Sprintf("履歴に保存しました (%s)", rep.RunID))
	return nil
}

func (u *uiState) onExport() {
	if len(u.rows) == 0 {
		dialog.ShowInformation("情報", "出力データがありません", u.w)
		return
	}
	rep := u.report
	fd := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
		if err != nil || uc == nil {
			return
		}
		defer uc.Close()
		if err := tally.WriteReport(uc, rep, tally.ReportOptions{Format: tally.FormatCSV}); err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.appendLog(fmt.Sprintf("CSVエクスポート完了 (%d件)", len(rep.Results.Records)))
	}, u.w)
	fd.SetFileName("entities.csv")
	fd.Show()
}

func (u *uiState) openSettings() {
	cfg := u.cfg

	engineSel := widget.NewSelect(engineChoices, nil)
	engineSel.SetSelected(cfg.Engine.Kind)

	keyLabels := make([]string, len(keyModeChoices))
	activeKey := keyModeChoices[0].Label
	for i, c := range keyModeChoices {
		keyLabels[i] = c.Label
		if c.Value == cfg.KeyMode {
			activeKey = c.Label
		}
	}
	keySel := widget.NewSelect(keyLabels, nil)
	keySel.SetSelected(activeKey)

	catsEntry := widget.NewMultiLineEntry()
	catsEntry.SetText(strings.Join(cfg.Categories, ", "))
	trackAllCheck := widget.NewCheck("全カテゴリを対象にする", func(b bool) {
		if b {
			catsEntry.Disable()
		} else {
			catsEntry.Enable()
		}
	})
	trackAllCheck.SetChecked(cfg.TrackAll)

	properCheck := widget.NewCheck("辞書にない固有名詞をMISCとして拾う", nil)
	properCheck.SetChecked(cfg.Engine.ProperNouns)

	ortEntry := widget.NewEntry()
	ortEntry.SetPlaceHolder("onnxruntime 共有ライブラリ")
	ortEntry.SetText(cfg.Engine.OrtLib)

	storeEntry := widget.NewEntry()
	storeEntry.SetPlaceHolder("空欄で履歴を保存しない")
	storeEntry.SetText(cfg.StorePath)

	form := &widget.Form{Items: []*widget.FormItem{
		{Text: "エンジン", Widget: engineSel},
		{Text: "ORTライブラリ", Widget: ortEntry},
		{Text: "集計キー", Widget: keySel},
		{Text: "対象カテゴリ", Widget: catsEntry},
		{Text: "", Widget: trackAllCheck},
		{Text: "固有名詞補完", Widget: properCheck},
		{Text: "履歴DB", Widget: storeEntry},
	}}

	dialog.NewCustomConfirm("設定", "OK", "キャンセル", form, func(ok bool) {
		if !ok {
			return
		}
		newCfg := cfg.Clone()
		if engineSel.Selected != "" {
			newCfg.Engine.Kind = engineSel.Selected
		}
		for _, c := range keyModeChoices {
			if c.Label == keySel.Selected {
				newCfg.KeyMode = c.Value
			}
		}
		newCfg.Categories = parseCategoryList(catsEntry.Text)
		newCfg.TrackAll = trackAllCheck.Checked
		newCfg.Engine.ProperNouns = properCheck.Checked
		newCfg.Engine.OrtLib = strings.TrimSpace(ortEntry.Text)
		newCfg.StorePath = strings.TrimSpace(storeEntry.Text)
		newCfg.Engine.ModelPath = strings.TrimSpace(u.modelPath.Text)
		newCfg.ApplyDefaults()

		// engine options only apply when the model is reopened
		if newCfg.Engine.ProperNouns != cfg.Engine.ProperNouns || newCfg.Engine.OrtLib != cfg.Engine.OrtLib {
			u.close()
		}
		u.cfg = newCfg
		if err := tally.SaveConfig("", newCfg); err != nil {
			u.appendLog(fmt.Sprintf("設定の保存に失敗しました: %v", err))
		}
		u.updateConfigSummary()
		u.appendLog("設定を更新しました")
	}, u.w).Show()
}

func (u *uiState) onPickModel() {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		path := rc.URI().Path()
		_ = rc.Close()
		u.modelPath.SetText(path)
		u.appendLog(fmt.Sprintf("モデル選択: %s", filepath.Base(path)))
	}, u.w)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".onnx", ".tsv", ".txt"}))
	fd.Show()
}

func (u *uiState) onPickModelDir() {
	fd := dialog.NewFolderOpen(func(lu fyne.ListableURI, err error) {
		if err != nil || lu == nil {
			return
		}
		u.modelPath.SetText(lu.Path())
		u.appendLog(fmt.Sprintf("モデルフォルダ選択: %s", filepath.Base(lu.Path())))
	}, u.w)
	fd.Show()
}

func (u *uiState) onLoadFile() {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		uri := rc.URI()
		u.input.SetText(string(data))
		u.source = uri.Path()
		u.appendLog(fmt.Sprintf("ファイル読込: %s (%d バイト)", filepath.Base(uri.Path()), len(data)))
	}, u.w)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".txt", ".md"}))
	fd.Show()
}
