package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/MeKo-Tech/scanocr/internal/imageio"
	"github.com/MeKo-Tech/scanocr/internal/server"
	"github.com/MeKo-Tech/scanocr/internal/testutil"
	"github.com/MeKo-Tech/scanocr/internal/workflow"
	"github.com/cucumber/godog"
)

// RegisterSteps registers every workflow step.
func (tc *TestContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Given(`^a scanocr server is running$`, tc.StartServer)
	sc.Given(`^the OCR engine recognizes "([^"]*)"$`, tc.theEngineRecognizes)
	sc.Given(`^the OCR engine recognizes nothing$`, tc.theEngineRecognizesNothing)
	sc.Given(`^the OCR engine fails with "([^"]*)"$`, tc.theEngineFailsWith)
	sc.Given(`^I create a session$`, tc.iCreateASession)

	sc.When(`^I upload a PNG image with the text "([^"]*)"$`, tc.iUploadPNGWithText)
	sc.When(`^I upload a JPEG image with the text "([^"]*)"$`, tc.iUploadJPEGWithText)
	sc.When(`^I upload a blank PNG image of (\d+)x(\d+) pixels$`, tc.iUploadBlankPNG)
	sc.When(`^I upload a corrupt file named "([^"]*)"$`, tc.iUploadCorruptFile)
	sc.When(`^I extract the text$`, tc.iExtractTheText)
	sc.When(`^I reset the session$`, tc.iResetTheSession)
	sc.When(`^I download the extracted text$`, tc.iDownloadTheExtractedText)

	sc.Then(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	sc.Then(`^the error type should be "([^"]*)"$`, tc.theErrorTypeShouldBe)
	sc.Then(`^the session state should be "([^"]*)"$`, tc.theSessionStateShouldBe)
	sc.Then(`^the extracted text should be "([^"]*)"$`, tc.theExtractedTextShouldBe)
	sc.Then(`^the session should have no image$`, tc.theSessionShouldHaveNoImage)
	sc.Then(`^the session should have no result$`, tc.theSessionShouldHaveNoResult)
	sc.Then(`^the response should not mention "([^"]*)"$`, tc.theResponseShouldNotMention)
	sc.Then(`^the download should be named "([^"]*)" with type "([^"]*)"$`, tc.theDownloadShouldBeNamed)
	sc.Then(`^the download body should be "([^"]*)"$`, tc.theDownloadBodyShouldBe)
	sc.Then(`^the OCR engine should not have been called$`, tc.theEngineShouldNotHaveBeenCalled)
}

// theEngineRecognizes scripts the engine; "|" separates fragments and a
// literal \t stands for a tab.
func (tc *TestContext) theEngineRecognizes(fragments string) error {
	fragments = strings.ReplaceAll(fragments, `\t`, "\t")
	tc.Engine.Set(strings.Split(fragments, "|"), nil)
	return nil
}

func (tc *TestContext) theEngineRecognizesNothing() error {
	tc.Engine.Set(nil, nil)
	return nil
}

func (tc *TestContext) theEngineFailsWith(msg string) error {
	tc.Engine.Set(nil, errors.New(msg))
	return nil
}

func (tc *TestContext) iCreateASession() error {
	if err := tc.do(http.MethodPost, "/sessions", nil, ""); err != nil {
		return err
	}
	if tc.LastStatus != http.StatusCreated {
		return fmt.Errorf("create session: status %d: %s", tc.LastStatus, tc.LastBody)
	}
	var resp server.SessionResponse
	if err := json.Unmarshal(tc.LastBody, &resp); err != nil {
		return err
	}
	tc.SessionID = resp.Session.ID
	return nil
}

func (tc *TestContext) iUploadPNGWithText(text string) error {
	data, err := imageio.EncodePNG(testutil.CreateTestImageWithText(text, 100, 50))
	if err != nil {
		return err
	}
	return tc.upload("upload.png", data)
}

func (tc *TestContext) iUploadJPEGWithText(text string) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testutil.CreateTestImageWithText(text, 100, 50), &jpeg.Options{Quality: 90}); err != nil {
		return err
	}
	return tc.upload("upload.jpg", buf.Bytes())
}

func (tc *TestContext) iUploadBlankPNG(width, height int) error {
	data, err := imageio.EncodePNG(testutil.CreateTestImage(width, height, image.White))
	if err != nil {
		return err
	}
	return tc.upload("blank.png", data)
}

func (tc *TestContext) iUploadCorruptFile(name string) error {
	return tc.upload(name, testutil.CorruptPNG())
}

func (tc *TestContext) iExtractTheText() error {
	return tc.do(http.MethodPost, tc.sessionPath("/extract"), nil, "")
}

func (tc *TestContext) iResetTheSession() error {
	return tc.do(http.MethodPost, tc.sessionPath("/reset"), nil, "")
}

func (tc *TestContext) iDownloadTheExtractedText() error {
	return tc.do(http.MethodGet, tc.sessionPath("/text"), nil, "")
}

func (tc *TestContext) theResponseStatusShouldBe(status int) error {
	if tc.LastStatus != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, tc.LastStatus, tc.LastBody)
	}
	return nil
}

func (tc *TestContext) theErrorTypeShouldBe(errType string) error {
	var resp server.ErrorResponse
	if err := json.Unmarshal(tc.LastBody, &resp); err != nil {
		return fmt.Errorf("response is not an error envelope: %w", err)
	}
	if resp.Success {
		return errors.New("expected an error response")
	}
	if resp.ErrorType != errType {
		return fmt.Errorf("expected error type %q, got %q (%s)", errType, resp.ErrorType, resp.Error)
	}
	return nil
}

func (tc *TestContext) theSessionStateShouldBe(state string) error {
	snap, err := tc.snapshot()
	if err != nil {
		return err
	}
	if snap.State.String() != state {
		return fmt.Errorf("expected state %s, got %s", state, snap.State)
	}
	return nil
}

func (tc *TestContext) theExtractedTextShouldBe(text string) error {
	snap, err := tc.snapshot()
	if err != nil {
		return err
	}
	if snap.Result == nil {
		return errors.New("session has no result")
	}
	if snap.Result.Text != text {
		return fmt.Errorf("expected text %q, got %q", text, snap.Result.Text)
	}
	return nil
}

func (tc *TestContext) theSessionShouldHaveNoImage() error {
	snap, err := tc.snapshot()
	if err != nil {
		return err
	}
	if snap.Image != nil {
		return fmt.Errorf("expected no image, got %+v", *snap.Image)
	}
	return nil
}

func (tc *TestContext) theSessionShouldHaveNoResult() error {
	snap, err := tc.snapshot()
	if err != nil {
		return err
	}
	if snap.Result != nil {
		return fmt.Errorf("expected no result, got %q", snap.Result.Text)
	}
	return nil
}

func (tc *TestContext) theResponseShouldNotMention(text string) error {
	if bytes.Contains(tc.LastBody, []byte(text)) {
		return fmt.Errorf("response mentions %q: %s", text, tc.LastBody)
	}
	return nil
}

func (tc *TestContext) theDownloadShouldBeNamed(filename, mediaType string) error {
	gotType, _, err := mime.ParseMediaType(tc.LastHeaders.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("parse content type: %w", err)
	}
	if gotType != mediaType {
		return fmt.Errorf("expected content type %s, got %s", mediaType, gotType)
	}
	_, params, err := mime.ParseMediaType(tc.LastHeaders.Get("Content-Disposition"))
	if err != nil {
		return fmt.Errorf("parse content disposition: %w", err)
	}
	if params["filename"] != filename {
		return fmt.Errorf("expected filename %s, got %s", filename, params["filename"])
	}
	return nil
}

func (tc *TestContext) theDownloadBodyShouldBe(body string) error {
	if string(tc.LastBody) != body {
		return fmt.Errorf("expected body %q, got %q", body, tc.LastBody)
	}
	return nil
}

func (tc *TestContext) theEngineShouldNotHaveBeenCalled() error {
	if n := tc.Engine.Calls(); n != 0 {
		return fmt.Errorf("engine was called %d time(s)", n)
	}
	return nil
}

func (tc *TestContext) sessionPath(suffix string) string {
	return "/sessions/" + tc.SessionID + suffix
}

func (tc *TestContext) upload(filename string, data []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return tc.do(http.MethodPost, tc.sessionPath("/image"), &body, w.FormDataContentType())
}

// do performs a request and records the response as the last exchange.
func (tc *TestContext) do(method, path string, body io.Reader, contentType string) error {
	if tc.HTTPServer == nil {
		return errors.New("server is not running")
	}
	req, err := http.NewRequest(method, tc.HTTPServer.URL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := tc.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.LastStatus = resp.StatusCode
	tc.LastBody = data
	tc.LastHeaders = resp.Header
	return nil
}

// snapshot fetches the session state without touching the last exchange.
func (tc *TestContext) snapshot() (workflow.Snapshot, error) {
	resp, err := tc.Client.Get(tc.HTTPServer.URL + tc.sessionPath(""))
	if err != nil {
		return workflow.Snapshot{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out server.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return workflow.Snapshot{}, err
	}
	if !out.Success {
		return workflow.Snapshot{}, fmt.Errorf("get session: status %d", resp.StatusCode)
	}
	return out.Session, nil
}
